package store

import (
	"context"
	"sync"
	"time"

	"github.com/oncomatch/matchengine/internal/match"
	"github.com/oncomatch/matchengine/internal/normalize"
)

// Memory is an in-process Store, used by tests and the mem:// store URI. It
// follows document-style matching semantics: a condition on an absent field
// fails, except Ne and Nin which match absence.
type Memory struct {
	mu       sync.RWMutex
	clinical []*Clinical
	genomic  []*Genomic
	trials   []*TrialDoc
	matches  []*match.Record
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

// Close implements Store. It never fails.
func (m *Memory) Close() error { return nil }

func (m *Memory) FindClinical(ctx context.Context, f Filter) ([]*Clinical, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Clinical
	for _, c := range m.clinical {
		if matchesFilter(f, c.field) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) ClinicalSampleIDs(ctx context.Context, f Filter) ([]string, error) {
	recs, err := m.FindClinical(ctx, f)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(recs))
	var ids []string
	for _, c := range recs {
		if c.SampleID == "" || seen[c.SampleID] {
			continue
		}
		seen[c.SampleID] = true
		ids = append(ids, c.SampleID)
	}
	return ids, nil
}

func (m *Memory) FindGenomic(ctx context.Context, f Filter) ([]*Genomic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Genomic
	for _, g := range m.genomic {
		if !matchesFilter(f, g.field) {
			continue
		}
		if f.WildtypeDefault && g.Wildtype != nil && *g.Wildtype {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (m *Memory) DistinctGeneVariants(ctx context.Context) ([]GeneVariant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[GeneVariant]bool)
	var out []GeneVariant
	for _, g := range m.genomic {
		if g.HugoSymbol == "" {
			continue
		}
		gv := GeneVariant{HugoSymbol: g.HugoSymbol, ProteinChange: g.ProteinChange}
		if !seen[gv] {
			seen[gv] = true
			out = append(out, gv)
		}
	}
	return out, nil
}

func (m *Memory) TrialDocs(ctx context.Context) ([]*TrialDoc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*TrialDoc, len(m.trials))
	copy(out, m.trials)
	return out, nil
}

func (m *Memory) ReplaceClinical(ctx context.Context, recs []*Clinical) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clinical = make([]*Clinical, len(recs))
	copy(m.clinical, recs)
	return nil
}

func (m *Memory) ReplaceGenomic(ctx context.Context, recs []*Genomic) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.genomic = make([]*Genomic, len(recs))
	copy(m.genomic, recs)
	return nil
}

func (m *Memory) ReplaceTrials(ctx context.Context, docs []*TrialDoc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trials = make([]*TrialDoc, len(docs))
	copy(m.trials, docs)
	return nil
}

func (m *Memory) ReplaceMatches(ctx context.Context, recs []*match.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches = make([]*match.Record, len(recs))
	copy(m.matches, recs)
	return nil
}

func (m *Memory) Matches(ctx context.Context) ([]*match.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*match.Record, len(m.matches))
	copy(out, m.matches)
	return out, nil
}

func matchesFilter(f Filter, lookup func(string) (any, bool)) bool {
	for _, c := range f.Conds {
		if !condMatches(c, lookup) {
			return false
		}
	}
	return true
}

func condMatches(c Cond, lookup func(string) (any, bool)) bool {
	v, ok := lookup(c.Field)
	switch c.Op {
	case OpExists:
		return ok == c.Bool
	case OpEq:
		return ok && condEq(c, v)
	case OpNe:
		return !ok || !condEq(c, v)
	case OpIn:
		return ok && condIn(c.Strs, v)
	case OpNin:
		return !ok || !condIn(c.Strs, v)
	case OpRegex:
		s, isStr := v.(string)
		if !ok || !isStr {
			return false
		}
		for _, re := range c.Regex {
			if re.MatchString(s) {
				return true
			}
		}
		return false
	case OpLT, OpLTE, OpGT, OpGTE:
		t, isTime := v.(time.Time)
		if !ok || !isTime {
			return false
		}
		switch c.Op {
		case OpLT:
			return t.Before(c.Time)
		case OpLTE:
			return !t.After(c.Time)
		case OpGT:
			return t.After(c.Time)
		default:
			return !t.Before(c.Time)
		}
	}
	return false
}

func condEq(c Cond, v any) bool {
	switch c.Kind {
	case KindString:
		s, ok := v.(string)
		return ok && s == c.Str
	case KindInt:
		n, ok := v.(int64)
		return ok && n == c.Int
	case KindBool:
		b, ok := v.(bool)
		return ok && b == c.Bool
	case KindTime:
		t, ok := v.(time.Time)
		return ok && t.Equal(c.Time)
	}
	return false
}

func condIn(set []string, v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, e := range set {
		if e == s {
			return true
		}
	}
	return false
}

// field resolves a queryable clinical field, reporting absence for empty
// values.
func (c *Clinical) field(name string) (any, bool) {
	switch name {
	case normalize.FieldSampleID:
		return presentString(c.SampleID)
	case normalize.FieldMRN:
		return presentString(c.MRN)
	case normalize.FieldDiagnosis:
		return presentString(c.OncotreeDiagnosis)
	case normalize.FieldBirthDate:
		if c.BirthDate.IsZero() {
			return nil, false
		}
		return c.BirthDate, true
	case normalize.FieldGender:
		return presentString(c.Gender)
	case normalize.FieldVitalStatus:
		return presentString(c.VitalStatus)
	}
	return nil, false
}

// field resolves a queryable genomic field, reporting absence for empty
// values.
func (g *Genomic) field(name string) (any, bool) {
	switch name {
	case normalize.FieldSampleID:
		return presentString(g.SampleID)
	case normalize.FieldHugoSymbol:
		return presentString(g.HugoSymbol)
	case normalize.FieldProteinChange:
		return presentString(g.ProteinChange)
	case normalize.FieldVariantClassification:
		return presentString(g.VariantClassification)
	case normalize.FieldVariantCategory:
		return presentString(g.VariantCategory)
	case normalize.FieldCNVCall:
		return presentString(g.CNVCall)
	case normalize.FieldWildtype:
		if g.Wildtype == nil {
			return nil, false
		}
		return *g.Wildtype, true
	case normalize.FieldTranscriptExon:
		if g.TranscriptExon == 0 {
			return nil, false
		}
		return g.TranscriptExon, true
	case normalize.FieldMMRStatus:
		return presentString(g.MMRStatus)
	case normalize.FieldSVComment:
		return presentString(g.SVComment)
	}
	return nil, false
}

func presentString(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	return s, true
}
