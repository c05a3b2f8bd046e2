// Package oncotree loads the tumor type taxonomy and expands trial
// diagnoses into concrete tumor type names.
//
// Two file formats are supported: the tab separated tree format, one node
// per line as "code<TAB>parent<TAB>name", and a JSON object mapping a
// diagnosis name directly to its list of descendant names.
package oncotree

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Sentinel diagnoses recognized by Expand.
const (
	AllTumors       = "All Tumors"
	AllSolidTumors  = "All Solid Tumors"
	AllLiquidTumors = "All Liquid Tumors"
	SentinelSolid   = "_SOLID_"
	SentinelLiquid  = "_LIQUID_"
)

// defaultLiquidParents are the subtree roots whose descendants form the
// liquid tumor set.
var defaultLiquidParents = []string{"Lymphoid", "Myeloid"}

const cacheSize = 512

// Tree is the loaded taxonomy. It is immutable after configuration and safe
// for concurrent expansion.
type Tree struct {
	children map[string][]string
	names    map[string]string
	byName   map[string]string
	codes    []string

	// mapping is set instead of the graph fields when the source was a
	// JSON diagnosis mapping.
	mapping map[string][]string

	liquidParents []string
	cache         *lru.Cache[string, expansion]
}

type expansion struct {
	names       []string
	constrained bool
}

// Load reads the taxonomy at path, choosing the format by file extension:
// .json is read as a diagnosis mapping, anything else as the tab separated
// tree format.
func Load(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tumor tree: %w", err)
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadMapping(f)
	}
	return LoadText(f)
}

// LoadText parses the tab separated tree format. Lines starting with '#'
// and blank lines are skipped. A node whose parent field is empty or "root"
// is a top level node.
func LoadText(r io.Reader) (*Tree, error) {
	t := newTree()
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 3 {
			return nil, fmt.Errorf("tumor tree line %d: want 3 tab separated fields, got %d", line, len(fields))
		}
		code := strings.TrimSpace(fields[0])
		parent := strings.TrimSpace(fields[1])
		name := strings.TrimSpace(fields[2])
		if code == "" {
			return nil, fmt.Errorf("tumor tree line %d: empty node code", line)
		}
		if _, dup := t.names[code]; dup {
			return nil, fmt.Errorf("tumor tree line %d: duplicate node code %q", line, code)
		}
		t.codes = append(t.codes, code)
		t.names[code] = name
		if name != "" {
			t.byName[name] = code
		}
		if parent != "" && parent != "root" {
			t.children[parent] = append(t.children[parent], code)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tumor tree: %w", err)
	}
	return t, nil
}

// LoadMapping parses the JSON mapping format. Values may be a single name
// or a list of names.
func LoadMapping(r io.Reader) (*Tree, error) {
	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode tumor tree mapping: %w", err)
	}
	t := newTree()
	t.mapping = make(map[string][]string, len(raw))
	for name, v := range raw {
		switch val := v.(type) {
		case string:
			t.mapping[name] = []string{val}
		case []any:
			names := make([]string, 0, len(val))
			for _, e := range val {
				s, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("tumor tree mapping %q: non-string entry", name)
				}
				names = append(names, s)
			}
			t.mapping[name] = names
		default:
			return nil, fmt.Errorf("tumor tree mapping %q: unsupported value type %T", name, v)
		}
	}
	return t, nil
}

func newTree() *Tree {
	cache, _ := lru.New[string, expansion](cacheSize)
	return &Tree{
		children:      make(map[string][]string),
		names:         make(map[string]string),
		byName:        make(map[string]string),
		liquidParents: defaultLiquidParents,
		cache:         cache,
	}
}

// SetLiquidParents overrides the subtree roots that define the liquid tumor
// set. Call before the tree is shared across goroutines.
func (t *Tree) SetLiquidParents(names []string) {
	if len(names) == 0 {
		return
	}
	t.liquidParents = names
	t.cache.Purge()
}

// AllNames returns the display names of every node, in file order.
func (t *Tree) AllNames() []string {
	names := make([]string, 0, len(t.codes))
	for _, code := range t.codes {
		names = append(names, t.names[code])
	}
	return names
}

// Expand resolves a trial diagnosis into the tumor type names it covers.
// constrained is false when the diagnosis places no restriction at all
// (All Tumors). A diagnosis not present in the taxonomy passes through
// unchanged as a single element list.
func (t *Tree) Expand(diagnosis string) (names []string, constrained bool) {
	if e, ok := t.cache.Get(diagnosis); ok {
		return e.names, e.constrained
	}
	names, constrained = t.expand(diagnosis)
	t.cache.Add(diagnosis, expansion{names: names, constrained: constrained})
	return names, constrained
}

func (t *Tree) expand(diagnosis string) ([]string, bool) {
	if diagnosis == AllTumors {
		return nil, false
	}
	if t.mapping != nil {
		if names, ok := t.mapping[diagnosis]; ok {
			return dedupe(names), true
		}
		return []string{diagnosis}, true
	}
	switch diagnosis {
	case SentinelLiquid, AllLiquidTumors:
		return t.liquidNames(), true
	case SentinelSolid, AllSolidTumors:
		return t.solidNames(), true
	}
	code, ok := t.byName[diagnosis]
	if !ok {
		return []string{diagnosis}, true
	}
	var names []string
	t.walk(code, func(c string) {
		names = append(names, t.names[c])
	})
	return dedupe(names), true
}

// liquidNames is the union of the descendants of every liquid parent.
func (t *Tree) liquidNames() []string {
	var names []string
	for _, parent := range t.liquidParents {
		code, ok := t.byName[parent]
		if !ok {
			continue
		}
		t.walk(code, func(c string) {
			names = append(names, t.names[c])
		})
	}
	return dedupe(names)
}

// solidNames is the complement of the liquid set over all nodes.
func (t *Tree) solidNames() []string {
	liquid := make(map[string]bool)
	for _, n := range t.liquidNames() {
		liquid[n] = true
	}
	var names []string
	for _, code := range t.codes {
		if n := t.names[code]; !liquid[n] {
			names = append(names, n)
		}
	}
	return dedupe(names)
}

// walk visits code and all its descendants depth first.
func (t *Tree) walk(code string, visit func(string)) {
	visit(code)
	for _, child := range t.children[code] {
		t.walk(child, visit)
	}
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0:0]
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
