package trial

import (
	"fmt"

	"github.com/oncomatch/matchengine/internal/criteria"
)

// Clause is one node of a match declaration: a boolean combinator over
// further clauses, or a leaf holding raw clinical or genomic criteria.
// Exactly one field may be set.
type Clause struct {
	And      []Clause       `json:"and,omitempty" yaml:"and,omitempty"`
	Or       []Clause       `json:"or,omitempty" yaml:"or,omitempty"`
	Clinical map[string]any `json:"clinical,omitempty" yaml:"clinical,omitempty"`
	Genomic  map[string]any `json:"genomic,omitempty" yaml:"genomic,omitempty"`
}

// Validate checks the clause grammar recursively: every clause carries
// exactly one of and, or, clinical, genomic, and combinators are non-empty.
func (c Clause) Validate() error {
	set := 0
	if c.And != nil {
		set++
	}
	if c.Or != nil {
		set++
	}
	if c.Clinical != nil {
		set++
	}
	if c.Genomic != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("clause must set exactly one of and, or, clinical, genomic; got %d", set)
	}
	if c.And != nil && len(c.And) == 0 {
		return fmt.Errorf("and clause has no children")
	}
	if c.Or != nil && len(c.Or) == 0 {
		return fmt.Errorf("or clause has no children")
	}
	for _, child := range c.And {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	for _, child := range c.Or {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// NodeType identifies what a match tree node combines or constrains.
type NodeType string

const (
	NodeAnd      NodeType = "and"
	NodeOr       NodeType = "or"
	NodeClinical NodeType = "clinical"
	NodeGenomic  NodeType = "genomic"
)

// Node is one match tree node. Leaves carry their parsed criteria; unknown
// criterion keys are already dropped.
type Node struct {
	Type     NodeType
	Parent   int // index of the parent node, -1 at the root
	Children []int
	Clinical *criteria.Clinical
	Genomic  *criteria.Genomic
}

// Leaf reports whether the node holds criteria rather than combining
// children.
func (n *Node) Leaf() bool {
	return n.Type == NodeClinical || n.Type == NodeGenomic
}

// MatchTree is a clause flattened into an indexed tree. Nodes sit in
// breadth first order with the root at index 0, so every child index
// exceeds its parent's and a reverse index walk visits children before
// parents. Sibling order follows the declared document order.
type MatchTree struct {
	Nodes []Node
}

// BuildTree validates a clause and flattens it into a match tree, parsing
// leaf criteria along the way.
func BuildTree(c Clause) (*MatchTree, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	t := &MatchTree{}
	type item struct {
		clause Clause
		parent int
	}
	queue := []item{{clause: c, parent: -1}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		idx := len(t.Nodes)
		n := Node{Parent: it.parent}
		switch {
		case it.clause.And != nil:
			n.Type = NodeAnd
			for _, child := range it.clause.And {
				queue = append(queue, item{clause: child, parent: idx})
			}
		case it.clause.Or != nil:
			n.Type = NodeOr
			for _, child := range it.clause.Or {
				queue = append(queue, item{clause: child, parent: idx})
			}
		case it.clause.Clinical != nil:
			n.Type = NodeClinical
			n.Clinical = criteria.ParseClinical(it.clause.Clinical)
		default:
			n.Type = NodeGenomic
			n.Genomic = criteria.ParseGenomic(it.clause.Genomic)
		}
		if it.parent >= 0 {
			t.Nodes[it.parent].Children = append(t.Nodes[it.parent].Children, idx)
		}
		t.Nodes = append(t.Nodes, n)
	}
	return t, nil
}

// Walk visits the subtree rooted at index i in depth first preorder.
func (t *MatchTree) Walk(i int, fn func(int)) {
	fn(i)
	for _, c := range t.Nodes[i].Children {
		t.Walk(c, fn)
	}
}

// GenomicLeaves returns the indexes of the genomic leaves in the subtree
// rooted at index i.
func (t *MatchTree) GenomicLeaves(i int) []int {
	var out []int
	t.Walk(i, func(j int) {
		if t.Nodes[j].Type == NodeGenomic {
			out = append(out, j)
		}
	})
	return out
}

// HasGenomic reports whether the tree contains any genomic leaf.
func (t *MatchTree) HasGenomic() bool {
	for i := range t.Nodes {
		if t.Nodes[i].Type == NodeGenomic {
			return true
		}
	}
	return false
}
