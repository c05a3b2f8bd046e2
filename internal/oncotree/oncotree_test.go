package oncotree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const treeText = `# code	parent	name
LUNG	root	Lung
NSCLC	LUNG	Non-Small Cell Lung Cancer
LUAD	NSCLC	Lung Adenocarcinoma
LUSC	NSCLC	Lung Squamous Cell Carcinoma
LYMPH	root	Lymphoid
DLBCL	LYMPH	Diffuse Large B-Cell Lymphoma
MYELOID	root	Myeloid
AML	MYELOID	Acute Myeloid Leukemia
`

func loadTestTree(t *testing.T) *Tree {
	t.Helper()
	tree, err := LoadText(strings.NewReader(treeText))
	require.NoError(t, err)
	return tree
}

func TestLoadText_FileOrder(t *testing.T) {
	tree := loadTestTree(t)
	assert.Equal(t, []string{
		"Lung", "Non-Small Cell Lung Cancer", "Lung Adenocarcinoma",
		"Lung Squamous Cell Carcinoma", "Lymphoid",
		"Diffuse Large B-Cell Lymphoma", "Myeloid", "Acute Myeloid Leukemia",
	}, tree.AllNames())
}

func TestLoadText_Errors(t *testing.T) {
	_, err := LoadText(strings.NewReader("LUNG\troot\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want 3 tab separated fields")

	_, err = LoadText(strings.NewReader("LUNG\troot\tLung\nLUNG\troot\tLung\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node code")
}

func TestExpand_Subtree(t *testing.T) {
	tree := loadTestTree(t)

	names, constrained := tree.Expand("Non-Small Cell Lung Cancer")
	assert.True(t, constrained)
	assert.Equal(t, []string{
		"Non-Small Cell Lung Cancer", "Lung Adenocarcinoma",
		"Lung Squamous Cell Carcinoma",
	}, names)
}

func TestExpand_LeafIsItself(t *testing.T) {
	tree := loadTestTree(t)

	names, constrained := tree.Expand("Lung Adenocarcinoma")
	assert.True(t, constrained)
	assert.Equal(t, []string{"Lung Adenocarcinoma"}, names)
}

func TestExpand_UnknownPassesThrough(t *testing.T) {
	tree := loadTestTree(t)

	names, constrained := tree.Expand("Melanoma")
	assert.True(t, constrained)
	assert.Equal(t, []string{"Melanoma"}, names)
}

func TestExpand_AllTumorsUnconstrained(t *testing.T) {
	tree := loadTestTree(t)

	names, constrained := tree.Expand(AllTumors)
	assert.False(t, constrained)
	assert.Empty(t, names)
}

func TestExpand_LiquidSentinel(t *testing.T) {
	tree := loadTestTree(t)

	names, constrained := tree.Expand(SentinelLiquid)
	assert.True(t, constrained)
	assert.ElementsMatch(t, []string{
		"Lymphoid", "Diffuse Large B-Cell Lymphoma",
		"Myeloid", "Acute Myeloid Leukemia",
	}, names)

	spelled, _ := tree.Expand(AllLiquidTumors)
	assert.Equal(t, names, spelled)
}

func TestExpand_SolidSentinelIsComplement(t *testing.T) {
	tree := loadTestTree(t)

	names, constrained := tree.Expand(SentinelSolid)
	assert.True(t, constrained)
	assert.ElementsMatch(t, []string{
		"Lung", "Non-Small Cell Lung Cancer", "Lung Adenocarcinoma",
		"Lung Squamous Cell Carcinoma",
	}, names)
}

func TestSetLiquidParents(t *testing.T) {
	tree := loadTestTree(t)
	tree.SetLiquidParents([]string{"Lung"})

	names, _ := tree.Expand(SentinelLiquid)
	assert.ElementsMatch(t, []string{
		"Lung", "Non-Small Cell Lung Cancer", "Lung Adenocarcinoma",
		"Lung Squamous Cell Carcinoma",
	}, names)

	solid, _ := tree.Expand(SentinelSolid)
	assert.ElementsMatch(t, []string{
		"Lymphoid", "Diffuse Large B-Cell Lymphoma",
		"Myeloid", "Acute Myeloid Leukemia",
	}, solid)
}

func TestLoadMapping(t *testing.T) {
	tree, err := LoadMapping(strings.NewReader(`{
		"Non-Small Cell Lung Cancer": ["Lung Adenocarcinoma", "Lung Squamous Cell Carcinoma"],
		"Melanoma": "Melanoma"
	}`))
	require.NoError(t, err)

	names, constrained := tree.Expand("Non-Small Cell Lung Cancer")
	assert.True(t, constrained)
	assert.Equal(t, []string{"Lung Adenocarcinoma", "Lung Squamous Cell Carcinoma"}, names)

	names, _ = tree.Expand("Melanoma")
	assert.Equal(t, []string{"Melanoma"}, names)

	// Mapping misses pass through like the tree format.
	names, _ = tree.Expand("Glioblastoma")
	assert.Equal(t, []string{"Glioblastoma"}, names)

	// All Tumors stays unconstrained under a mapping too.
	_, constrained = tree.Expand(AllTumors)
	assert.False(t, constrained)
}

func TestLoadMapping_Errors(t *testing.T) {
	_, err := LoadMapping(strings.NewReader(`{"Melanoma": 7}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported value type")

	_, err = LoadMapping(strings.NewReader(`{"Melanoma": ["ok", 7]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-string entry")
}

func TestExpand_Cached(t *testing.T) {
	tree := loadTestTree(t)

	first, _ := tree.Expand("Non-Small Cell Lung Cancer")
	second, _ := tree.Expand("Non-Small Cell Lung Cancer")
	assert.Equal(t, first, second)
}
