package engine

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/oncomatch/matchengine/internal/trial"
)

// fact is one deduplicated match produced by a tree for a sample: a genomic
// alteration, optionally constrained by a clinical leaf whose declared
// attributes it carries, or a clinical-only match.
type fact struct {
	sampleID       string
	clinicalOnly   bool
	matchType      string
	alteration     string
	genomic        *Evidence
	trialDiagnosis string
	trialAge       string
}

func (f *fact) key() string {
	gid := ""
	if f.genomic != nil && f.genomic.Genomic != nil {
		gid = f.genomic.Genomic.ID
	}
	return strings.Join([]string{
		f.sampleID, f.alteration, f.matchType, gid,
		f.trialDiagnosis, f.trialAge, strconv.FormatBool(f.clinicalOnly),
	}, "|")
}

// traverse evaluates a match tree bottom-up, then reconstructs the evidence
// behind every surviving sample. Internal nodes combine their children's
// sample sets: and intersects, or unites. A clinical leaf in a tree holding
// any genomic leaf constrains alterations and attaches its declared
// diagnosis and age onto them at its nearest genomic-bearing junction; in a
// tree without genomic leaves it produces clinical-only matches.
func (ev *evaluator) traverse(ctx context.Context, tree *trial.MatchTree) ([]fact, error) {
	n := len(tree.Nodes)
	samples := make([]map[string]bool, n)
	evidence := make([][]Evidence, n)

	// children carry higher indexes than parents, so a reverse walk is a
	// postorder evaluation
	for i := n - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := &tree.Nodes[i]
		switch node.Type {
		case trial.NodeClinical:
			set, err := ev.clinicalSamples(ctx, i, node.Clinical)
			if err != nil {
				return nil, err
			}
			samples[i] = set
		case trial.NodeGenomic:
			set, evs, err := ev.genomicMatches(ctx, i, node.Genomic)
			if err != nil {
				return nil, err
			}
			samples[i] = set
			evidence[i] = evs
		case trial.NodeAnd:
			samples[i] = intersect(samples, node.Children)
		case trial.NodeOr:
			samples[i] = union(samples, node.Children)
		}
	}

	root := samples[0]
	if len(root) == 0 {
		return nil, nil
	}

	var facts []fact
	seen := make(map[string]bool)
	add := func(f fact) {
		k := f.key()
		if seen[k] {
			return
		}
		seen[k] = true
		facts = append(facts, f)
	}

	// clinical joins: leaf index -> junction ancestor and the genomic
	// leaves on its far side
	type join struct {
		junction int
		leaves   map[int]bool
	}
	joins := make(map[int]join)
	clinicalOnly := !tree.HasGenomic()
	for i := range tree.Nodes {
		if tree.Nodes[i].Type != trial.NodeClinical || clinicalOnly {
			continue
		}
		junction, leaves, ok := joinLeaves(tree, i)
		if ok {
			joins[i] = join{junction: junction, leaves: leaves}
		}
	}

	for i := range tree.Nodes {
		node := &tree.Nodes[i]
		switch node.Type {
		case trial.NodeGenomic:
			for gi := range evidence[i] {
				evd := &evidence[i][gi]
				if !root[evd.SampleID] {
					continue
				}
				attached := false
				for c := range tree.Nodes {
					j, ok := joins[c]
					if !ok || !j.leaves[i] {
						continue
					}
					if !samples[c][evd.SampleID] || !samples[j.junction][evd.SampleID] {
						continue
					}
					crit := tree.Nodes[c].Clinical
					attached = true
					add(fact{
						sampleID:       evd.SampleID,
						matchType:      evd.MatchType,
						alteration:     evd.Alteration,
						genomic:        evd,
						trialDiagnosis: crit.TrialDiagnosis(),
						trialAge:       crit.TrialAge(),
					})
				}
				if !attached {
					add(fact{
						sampleID:   evd.SampleID,
						matchType:  evd.MatchType,
						alteration: evd.Alteration,
						genomic:    evd,
					})
				}
			}
		case trial.NodeClinical:
			if !clinicalOnly {
				continue
			}
			crit := node.Clinical
			for _, id := range sortedIDs(samples[i]) {
				if !root[id] {
					continue
				}
				add(fact{
					sampleID:       id,
					clinicalOnly:   true,
					alteration:     "None",
					trialDiagnosis: crit.TrialDiagnosis(),
					trialAge:       crit.TrialAge(),
				})
			}
		}
	}
	return facts, nil
}

// joinLeaves walks from a clinical leaf toward the root and returns the
// first ancestor holding genomic leaves in a sibling branch, together with
// those leaves. ok is false only when the tree has no genomic leaf at all.
func joinLeaves(tree *trial.MatchTree, c int) (junction int, leaves map[int]bool, ok bool) {
	child := c
	for parent := tree.Nodes[c].Parent; parent >= 0; parent, child = tree.Nodes[parent].Parent, parent {
		var found []int
		for _, sib := range tree.Nodes[parent].Children {
			if sib == child {
				continue
			}
			found = append(found, tree.GenomicLeaves(sib)...)
		}
		if len(found) > 0 {
			leaves = make(map[int]bool, len(found))
			for _, g := range found {
				leaves[g] = true
			}
			return parent, leaves, true
		}
	}
	return 0, nil, false
}

func intersect(samples []map[string]bool, children []int) map[string]bool {
	out := make(map[string]bool)
	if len(children) == 0 {
		return out
	}
	for id := range samples[children[0]] {
		out[id] = true
	}
	for _, c := range children[1:] {
		for id := range out {
			if !samples[c][id] {
				delete(out, id)
			}
		}
	}
	return out
}

func union(samples []map[string]bool, children []int) map[string]bool {
	out := make(map[string]bool)
	for _, c := range children {
		for id := range samples[c] {
			out[id] = true
		}
	}
	return out
}

func sortedIDs(set map[string]bool) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
