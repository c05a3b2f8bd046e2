// Package annotation resolves declared variant classes such as "Oncogenic
// Mutations" against an external annotation service and caches the answer
// as an immutable catalog keyed by gene and declared class.
package annotation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// GeneVariant is a (gene, alteration) pair, either declared by a trial or
// observed in the genomic collection.
type GeneVariant struct {
	HugoSymbol string `json:"hugoSymbol"`
	Alteration string `json:"alteration"`
}

// Catalog maps gene to declared variant class to the protein changes the
// annotation service resolved into that class. It is immutable after Fetch
// and safe for concurrent readers.
type Catalog map[string]map[string][]string

// Contains reports whether proteinChange belongs to the declared class for
// gene. The declared form always belongs to itself.
func (c Catalog) Contains(gene, declared, proteinChange string) bool {
	if proteinChange != "" && proteinChange == declared {
		return true
	}
	for _, pc := range c[gene][declared] {
		if pc == proteinChange {
			return true
		}
	}
	return false
}

func (c Catalog) add(gene, declared, proteinChange string) {
	byClass, ok := c[gene]
	if !ok {
		byClass = make(map[string][]string)
		c[gene] = byClass
	}
	for _, pc := range byClass[declared] {
		if pc == proteinChange {
			return
		}
	}
	byClass[declared] = append(byClass[declared], proteinChange)
}

// queryBatchSize caps the observed variants sent per request.
const queryBatchSize = 500

// Client talks to the annotation service. Requests run behind a circuit
// breaker so a failing service degrades matching instead of stalling it.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates a client for the annotation endpoint. token may be
// empty for unauthenticated services.
func NewClient(endpoint, token string) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "annotation",
			MaxRequests: 5,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && ratio >= 0.6
			},
		}),
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger used for request diagnostics.
func (c *Client) SetLogger(logger *zap.Logger) {
	c.logger = logger
}

type annotationQuery struct {
	ID         string `json:"id"`
	HugoSymbol string `json:"hugoSymbol"`
	Alteration string `json:"alteration"`
}

type annotationRequest struct {
	OncokbVariants []GeneVariant     `json:"oncokbVariants"`
	Queries        []annotationQuery `json:"queries"`
}

type annotationEntry struct {
	Query  annotationQuery `json:"query"`
	Result []GeneVariant   `json:"result"`
}

// FetchCatalog resolves every observed variant against the declared classes
// and returns the catalog. Observed variants are sent in batches; declared
// classes accompany every batch.
func (c *Client) FetchCatalog(ctx context.Context, declared, observed []GeneVariant) (Catalog, error) {
	catalog := make(Catalog)
	declared = dedupe(declared)
	observed = dedupe(observed)
	if len(declared) == 0 || len(observed) == 0 {
		return catalog, nil
	}

	for start := 0; start < len(observed); start += queryBatchSize {
		end := min(start+queryBatchSize, len(observed))
		queries := make([]annotationQuery, 0, end-start)
		for i, gv := range observed[start:end] {
			queries = append(queries, annotationQuery{
				ID:         strconv.Itoa(start + i),
				HugoSymbol: gv.HugoSymbol,
				Alteration: gv.Alteration,
			})
		}
		entries, err := c.annotate(ctx, annotationRequest{OncokbVariants: declared, Queries: queries})
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			for _, r := range e.Result {
				catalog.add(r.HugoSymbol, r.Alteration, e.Query.Alteration)
			}
		}
		c.logger.Debug("annotation batch resolved",
			zap.Int("queries", len(queries)),
			zap.Int("entries", len(entries)))
	}
	return catalog, nil
}

func (c *Client) annotate(ctx context.Context, reqBody annotationRequest) ([]annotationEntry, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.post(ctx, reqBody)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("annotation service unavailable: %w", err)
		}
		return nil, err
	}
	return out.([]annotationEntry), nil
}

func (c *Client) post(ctx context.Context, reqBody annotationRequest) ([]annotationEntry, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode annotation request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build annotation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("annotation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("annotation service error %d: %s", resp.StatusCode, string(body))
	}

	var entries []annotationEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode annotation response: %w", err)
	}
	return entries, nil
}

func dedupe(values []GeneVariant) []GeneVariant {
	seen := make(map[GeneVariant]bool, len(values))
	out := values[:0:0]
	for _, v := range values {
		if v.HugoSymbol == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
