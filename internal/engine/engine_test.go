package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncomatch/matchengine/internal/match"
	"github.com/oncomatch/matchengine/internal/normalize"
	"github.com/oncomatch/matchengine/internal/oncotree"
	"github.com/oncomatch/matchengine/internal/store"
)

func boolp(b bool) *bool { return &b }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seedPatients loads three samples: an adult lung adenocarcinoma with an
// EGFR mutation, a KRAS wildtype call and an MMR deficiency; a pediatric
// melanoma with a BRAF mutation and an ETV6-NTRK3 fusion; and an adult
// leukemia without genomic data.
func seedPatients(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.ReplaceClinical(ctx, []*store.Clinical{
		{
			ID: "C1", SampleID: "S1", MRN: "M1",
			OncotreeDiagnosis: "Lung Adenocarcinoma",
			BirthDate:         date(1950, time.March, 1),
			Gender:            "Female", VitalStatus: "alive",
			FirstLast:        "ADA LOVELACE",
			OrdPhysicianName: "FAKE PHYSICIAN", OrdPhysicianEmail: "fake_physician@fake.fake",
			ReportDate: date(2016, time.January, 1),
		},
		{
			ID: "C2", SampleID: "S2", MRN: "M2",
			OncotreeDiagnosis: "Cutaneous Melanoma",
			BirthDate:         date(2023, time.June, 1),
			Gender:            "Male", VitalStatus: "alive",
		},
		{
			ID: "C3", SampleID: "S3", MRN: "M3",
			OncotreeDiagnosis: "Acute Myeloid Leukemia",
			BirthDate:         date(1960, time.January, 1),
			Gender:            "Female", VitalStatus: "alive",
		},
	}))
	require.NoError(t, st.ReplaceGenomic(ctx, []*store.Genomic{
		{
			ID: "G1", SampleID: "S1", ClinicalID: "C1",
			HugoSymbol: "EGFR", ProteinChange: "p.L858R",
			VariantClassification: "Missense_Mutation",
			VariantCategory:       normalize.CategoryMutation,
			Wildtype:              boolp(false),
			TranscriptExon:        21, Chromosome: "7", Position: 55259515,
			CDNAChange: "c.2573T>G", ReferenceAllele: "T", CanonicalStrand: "+",
			AlleleFraction: 0.35, Tier: 1,
		},
		{
			ID: "G2", SampleID: "S2", ClinicalID: "C2",
			HugoSymbol: "BRAF", ProteinChange: "p.V600E",
			VariantClassification: "Missense_Mutation",
			VariantCategory:       normalize.CategoryMutation,
			Wildtype:              boolp(false), Tier: 1,
		},
		{
			ID: "G3", SampleID: "S1", ClinicalID: "C1",
			HugoSymbol:      "KRAS",
			VariantCategory: normalize.CategoryMutation,
			Wildtype:        boolp(true),
		},
		{
			ID: "G4", SampleID: "S2", ClinicalID: "C2",
			VariantCategory: normalize.CategorySV,
			SVComment:       "ETV6-NTRK3 fusion detected",
		},
		{
			ID: "G5", SampleID: "S1", ClinicalID: "C1",
			MMRStatus: normalize.MMRDeficient,
		},
	}))
}

// trialDoc wraps a treatment step list into a stored trial document.
func trialDoc(t *testing.T, protocolNo, steps string) *store.TrialDoc {
	t.Helper()
	doc := fmt.Sprintf(`{
		"protocol_id": "1",
		"protocol_no": %q,
		"nct_id": "NCT02296125",
		"_summary": {
			"coordinating_center": "Dana-Farber Cancer Institute",
			"tumor_types": ["Lung Adenocarcinoma"],
			"status": [{"value": "Open to Accrual"}]
		},
		"treatment_list": {"step": [%s]}
	}`, protocolNo, steps)
	return &store.TrialDoc{ProtocolNo: protocolNo, NCTID: "NCT02296125", Doc: []byte(doc)}
}

// stepMatch renders one step declaring the given match clause.
func stepMatch(clause string) string {
	return fmt.Sprintf(`{"step_internal_id": "100", "step_code": "1", "match": [%s]}`, clause)
}

func runMatch(t *testing.T, docs []*store.TrialDoc, tumors *oncotree.Tree, cfg Config) ([]*match.Record, store.Store) {
	t.Helper()
	st := store.NewMemory()
	seedPatients(t, st)
	require.NoError(t, st.ReplaceTrials(context.Background(), docs))
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	eng := New(st, tumors, cfg)
	records, err := eng.Run(context.Background())
	require.NoError(t, err)
	return records, st
}

const tumorTreeText = "LUNG\t\tLung\n" +
	"NSCLC\tLUNG\tNon-Small Cell Lung Cancer\n" +
	"LUAD\tNSCLC\tLung Adenocarcinoma\n" +
	"SKCM\t\tCutaneous Melanoma\n" +
	"MYELOID\t\tMyeloid\n" +
	"AML\tMYELOID\tAcute Myeloid Leukemia\n"

func testTumors(t *testing.T) *oncotree.Tree {
	t.Helper()
	tree, err := oncotree.LoadText(strings.NewReader(tumorTreeText))
	require.NoError(t, err)
	return tree
}

func TestEngine_Run_GeneMatch(t *testing.T) {
	docs := []*store.TrialDoc{trialDoc(t, "17-251", stepMatch(`{"genomic": {"hugo_symbol": "EGFR"}}`))}
	records, st := runMatch(t, docs, nil, Config{})
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "S1", r.SampleID)
	assert.Equal(t, "M1", r.MRN)
	assert.Equal(t, "17-251", r.ProtocolNo)
	assert.Equal(t, "NCT02296125", r.NCTID)
	assert.Equal(t, "EGFR p.L858R", r.GenomicAlteration)
	assert.Equal(t, match.MatchTypeGene, r.MatchType)
	assert.Equal(t, "open", r.TrialAccrualStatus)
	assert.Equal(t, "step", r.MatchLevel)
	assert.Equal(t, "1", r.Code)
	assert.Equal(t, "100", r.InternalID)
	assert.Equal(t, "EGFR", r.TrueHugoSymbol)
	assert.Equal(t, int64(1), r.Tier)
	assert.Equal(t, int64(21), r.TrueTranscriptExon)
	assert.Equal(t, "G1", r.GenomicID)
	assert.Equal(t, "C1", r.ClinicalID)
	assert.Equal(t, "Lung Adenocarcinoma", r.OncotreePrimaryDiagnosisName)
	assert.Equal(t, match.CancerTypeSpecific, r.CancerTypeMatch)
	assert.Equal(t, match.CoordinatingCenterDFCI, r.CoordinatingCenter)
	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, 0, r.SortOrder)

	// The stored match collection mirrors the returned slice.
	stored, err := st.Matches(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, r.Key(), stored[0].Key())
}

func TestEngine_Run_VariantMatch(t *testing.T) {
	docs := []*store.TrialDoc{trialDoc(t, "17-251",
		stepMatch(`{"genomic": {"hugo_symbol": "EGFR", "protein_change": "p.L858R"}}`))}
	records, _ := runMatch(t, docs, nil, Config{})
	require.Len(t, records, 1)
	assert.Equal(t, match.MatchTypeVariant, records[0].MatchType)

	docs = []*store.TrialDoc{trialDoc(t, "17-251",
		stepMatch(`{"genomic": {"hugo_symbol": "EGFR", "protein_change": "p.T790M"}}`))}
	records, _ = runMatch(t, docs, nil, Config{})
	assert.Empty(t, records)
}

func TestEngine_Run_WildcardProteinChange(t *testing.T) {
	docs := []*store.TrialDoc{trialDoc(t, "17-251",
		stepMatch(`{"genomic": {"hugo_symbol": "EGFR", "wildcard_protein_change": "p.L858"}}`))}
	records, _ := runMatch(t, docs, nil, Config{})
	require.Len(t, records, 1)
	assert.Equal(t, "EGFR p.L858R", records[0].GenomicAlteration)
	assert.Equal(t, match.MatchTypeVariant, records[0].MatchType)
}

func TestEngine_Run_ClinicalAndGenomic(t *testing.T) {
	clause := `{"and": [
		{"clinical": {"oncotree_primary_diagnosis": "Lung Adenocarcinoma", "age_numerical": ">=18"}},
		{"genomic": {"hugo_symbol": "EGFR"}}
	]}`
	records, _ := runMatch(t, []*store.TrialDoc{trialDoc(t, "17-251", stepMatch(clause))}, nil, Config{})
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "S1", r.SampleID)
	assert.Equal(t, "Lung Adenocarcinoma", r.TrialOncotreePrimaryDiagnosis)
	assert.Equal(t, ">=18", r.TrialAgeNumerical)
	assert.False(t, r.ClinicalOnly)
}

func TestEngine_Run_NegativeGeneComplement(t *testing.T) {
	docs := []*store.TrialDoc{trialDoc(t, "17-251", stepMatch(`{"genomic": {"hugo_symbol": "!BRAF"}}`))}
	records, _ := runMatch(t, docs, nil, Config{})
	require.Len(t, records, 2)

	// S2 carries BRAF; the complement keeps S1 and S3 with a synthetic
	// alteration and no genomic row attached.
	ids := []string{records[0].SampleID, records[1].SampleID}
	assert.Equal(t, []string{"S1", "S3"}, ids)
	for _, r := range records {
		assert.Equal(t, "!BRAF", r.GenomicAlteration)
		assert.Equal(t, match.MatchTypeGene, r.MatchType)
		assert.Empty(t, r.TrueHugoSymbol)
		assert.Empty(t, r.GenomicID)
	}
}

func TestEngine_Run_DiagnosisExpansion(t *testing.T) {
	clause := `{"and": [
		{"clinical": {"oncotree_primary_diagnosis": "Non-Small Cell Lung Cancer"}},
		{"genomic": {"hugo_symbol": "EGFR"}}
	]}`
	docs := []*store.TrialDoc{trialDoc(t, "17-251", stepMatch(clause))}

	// With the tumor tree the trial diagnosis expands to its descendants.
	records, _ := runMatch(t, docs, testTumors(t), Config{})
	require.Len(t, records, 1)
	assert.Equal(t, "S1", records[0].SampleID)
	assert.Equal(t, "Non-Small Cell Lung Cancer", records[0].TrialOncotreePrimaryDiagnosis)
	assert.Equal(t, "Lung Adenocarcinoma", records[0].OncotreePrimaryDiagnosisName)

	// Without it the diagnosis matches literally and misses the sample.
	records, _ = runMatch(t, docs, nil, Config{})
	assert.Empty(t, records)
}

func TestEngine_Run_SolidGroup(t *testing.T) {
	clause := `{"and": [
		{"clinical": {"oncotree_primary_diagnosis": "_SOLID_"}},
		{"genomic": {"hugo_symbol": "!BRAF"}}
	]}`
	records, _ := runMatch(t, []*store.TrialDoc{trialDoc(t, "17-251", stepMatch(clause))}, testTumors(t), Config{})
	require.Len(t, records, 1)

	// S2 carries BRAF and S3's leukemia is liquid; only S1 survives.
	assert.Equal(t, "S1", records[0].SampleID)
	assert.Equal(t, "_SOLID_", records[0].TrialOncotreePrimaryDiagnosis)
}

func TestEngine_Run_StructuralVariantComment(t *testing.T) {
	docs := []*store.TrialDoc{trialDoc(t, "17-251",
		stepMatch(`{"genomic": {"hugo_symbol": "NTRK3", "variant_category": "Structural Variation"}}`))}
	records, _ := runMatch(t, docs, nil, Config{})
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "S2", r.SampleID)
	assert.Equal(t, " Structural Variation", r.GenomicAlteration)
	assert.Equal(t, normalize.CategorySV, r.VariantCategory)
	assert.Empty(t, r.TrueHugoSymbol)
}

func TestEngine_Run_WildtypeDefault(t *testing.T) {
	// The KRAS call is wildtype, so a plain gene criterion skips it.
	docs := []*store.TrialDoc{trialDoc(t, "17-251", stepMatch(`{"genomic": {"hugo_symbol": "KRAS"}}`))}
	records, _ := runMatch(t, docs, nil, Config{})
	assert.Empty(t, records)

	docs = []*store.TrialDoc{trialDoc(t, "17-251",
		stepMatch(`{"genomic": {"hugo_symbol": "KRAS", "wildtype": "true"}}`))}
	records, _ = runMatch(t, docs, nil, Config{})
	require.Len(t, records, 1)
	assert.Equal(t, "wt KRAS", records[0].GenomicAlteration)
	require.NotNil(t, records[0].Wildtype)
	assert.True(t, *records[0].Wildtype)
}

func TestEngine_Run_MMRDeficient(t *testing.T) {
	docs := []*store.TrialDoc{trialDoc(t, "17-251",
		stepMatch(`{"genomic": {"mmr_status": "MMR-Deficient"}}`))}
	records, _ := runMatch(t, docs, nil, Config{})
	require.Len(t, records, 1)
	assert.Equal(t, "S1", records[0].SampleID)
	assert.Equal(t, "MMR-Deficient", records[0].GenomicAlteration)
	assert.Equal(t, normalize.MMRDeficient, records[0].MMRStatus)
}

func TestEngine_Run_ClinicalOnlyTree(t *testing.T) {
	docs := []*store.TrialDoc{trialDoc(t, "17-251", stepMatch(`{"clinical": {"gender": "Female"}}`))}
	records, _ := runMatch(t, docs, nil, Config{})
	require.Len(t, records, 2)

	assert.Equal(t, "S1", records[0].SampleID)
	assert.Equal(t, "S3", records[1].SampleID)
	for _, r := range records {
		assert.True(t, r.ClinicalOnly)
		assert.Equal(t, "None", r.GenomicAlteration)
		assert.Empty(t, r.MatchType)
		assert.Equal(t, 0, r.SortOrder)
	}
}

func TestEngine_Run_GenomicTreeSkipsClinicalOnlyBranch(t *testing.T) {
	// In a tree holding genomic leaves a clinical branch never emits on its
	// own, even under or.
	clause := `{"or": [
		{"clinical": {"oncotree_primary_diagnosis": "Cutaneous Melanoma"}},
		{"genomic": {"hugo_symbol": "EGFR"}}
	]}`
	records, _ := runMatch(t, []*store.TrialDoc{trialDoc(t, "17-251", stepMatch(clause))}, nil, Config{})
	require.Len(t, records, 1)
	assert.Equal(t, "S1", records[0].SampleID)
	assert.Empty(t, records[0].TrialOncotreePrimaryDiagnosis)
	assert.False(t, records[0].ClinicalOnly)
}

func TestEngine_Run_DedupesRepeatedEvidence(t *testing.T) {
	clause := `{"or": [
		{"genomic": {"hugo_symbol": "EGFR"}},
		{"genomic": {"hugo_symbol": "EGFR"}}
	]}`
	records, _ := runMatch(t, []*store.TrialDoc{trialDoc(t, "17-251", stepMatch(clause))}, nil, Config{})
	assert.Len(t, records, 1)
}

func TestEngine_Run_SuspendedDoseClosesAccrual(t *testing.T) {
	steps := `{
		"step_internal_id": "100", "step_code": "1",
		"arm": [{
			"arm_internal_id": "200", "arm_code": "A",
			"arm_description": "EGFR inhibitor", "arm_type": "experimental",
			"match": [{"genomic": {"hugo_symbol": "EGFR"}}],
			"dose_level": [{
				"level_internal_id": "300", "level_code": "A1", "level_suspended": "Y",
				"match": [{"genomic": {"hugo_symbol": "EGFR"}}]
			}]
		}]
	}`
	records, _ := runMatch(t, []*store.TrialDoc{trialDoc(t, "17-251", steps)}, nil, Config{})
	require.Len(t, records, 2)

	byLevel := map[string]*match.Record{}
	for _, r := range records {
		byLevel[r.MatchLevel] = r
	}
	arm := byLevel["arm"]
	require.NotNil(t, arm)
	assert.Equal(t, "open", arm.TrialAccrualStatus)
	assert.Equal(t, "A", arm.Code)
	assert.Equal(t, "EGFR inhibitor", arm.ArmDescription)
	assert.Equal(t, "experimental", arm.ArmType)

	dose := byLevel["dose"]
	require.NotNil(t, dose)
	assert.Equal(t, "closed", dose.TrialAccrualStatus)
	assert.Equal(t, "A1", dose.Code)
	assert.Empty(t, dose.ArmDescription)
}

func TestEngine_Run_ProtocolFilter(t *testing.T) {
	docs := []*store.TrialDoc{
		trialDoc(t, "17-251", stepMatch(`{"genomic": {"hugo_symbol": "EGFR"}}`)),
		trialDoc(t, "18-333", stepMatch(`{"genomic": {"hugo_symbol": "BRAF"}}`)),
	}
	records, _ := runMatch(t, docs, nil, Config{Protocols: []string{"18-333"}})
	require.Len(t, records, 1)
	assert.Equal(t, "18-333", records[0].ProtocolNo)
	assert.Equal(t, "S2", records[0].SampleID)
}

func TestEngine_Run_SkipsInvalidTrials(t *testing.T) {
	docs := []*store.TrialDoc{
		{ProtocolNo: "bad-json", Doc: []byte(`{"protocol_no": `)},
		{ProtocolNo: "no-nct", Doc: []byte(`{"protocol_id": "2", "protocol_no": "no-nct", "treatment_list": {"step": [{"step_internal_id": "1"}]}}`)},
		trialDoc(t, "17-251", stepMatch(`{"genomic": {"hugo_symbol": "EGFR"}}`)),
	}
	records, _ := runMatch(t, docs, nil, Config{})
	require.Len(t, records, 1)
	assert.Equal(t, "17-251", records[0].ProtocolNo)
}

func TestEngine_Run_SortsAcrossTrials(t *testing.T) {
	docs := []*store.TrialDoc{
		trialDoc(t, "17-251", stepMatch(`{"genomic": {"hugo_symbol": "EGFR"}}`)),
		trialDoc(t, "18-333", stepMatch(`{"genomic": {"hugo_symbol": "EGFR", "protein_change": "p.L858R"}}`)),
	}
	records, _ := runMatch(t, docs, nil, Config{})
	require.Len(t, records, 2)

	// The variant match outranks the gene match.
	assert.Equal(t, "18-333", records[0].ProtocolNo)
	assert.Equal(t, 0, records[0].SortOrder)
	assert.Equal(t, "17-251", records[1].ProtocolNo)
	assert.Equal(t, 1, records[1].SortOrder)
}

func TestEngine_Run_FixedRunID(t *testing.T) {
	docs := []*store.TrialDoc{trialDoc(t, "17-251", stepMatch(`{"genomic": {"hugo_symbol": "EGFR"}}`))}
	records, _ := runMatch(t, docs, nil, Config{RunID: "run-42"})
	require.Len(t, records, 1)
	assert.Equal(t, "run-42", records[0].RunID)
}

func TestEngine_Run_ReplacesPreviousMatches(t *testing.T) {
	st := store.NewMemory()
	seedPatients(t, st)
	ctx := context.Background()
	require.NoError(t, st.ReplaceTrials(ctx, []*store.TrialDoc{
		trialDoc(t, "17-251", stepMatch(`{"genomic": {"hugo_symbol": "EGFR"}}`)),
		trialDoc(t, "18-333", stepMatch(`{"genomic": {"hugo_symbol": "BRAF"}}`)),
	}))

	eng := New(st, nil, Config{Workers: 2})
	records, err := eng.Run(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// A restricted rerun replaces the whole collection.
	eng = New(st, nil, Config{Workers: 2, Protocols: []string{"18-333"}})
	records, err = eng.Run(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	stored, err := st.Matches(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "18-333", stored[0].ProtocolNo)
}

func TestEngine_Run_AnnotatedWithoutClientDegrades(t *testing.T) {
	docs := []*store.TrialDoc{trialDoc(t, "17-251", stepMatch(`{"genomic": {"hugo_symbol": "EGFR"}}`))}
	records, _ := runMatch(t, docs, nil, Config{MatchMethod: MethodAnnotated})
	require.Len(t, records, 1)
	assert.Equal(t, "EGFR p.L858R", records[0].GenomicAlteration)
}

func TestEngine_Run_EmptyCollections(t *testing.T) {
	st := store.NewMemory()
	eng := New(st, nil, Config{Workers: 2})
	records, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDefaultWorkers(t *testing.T) {
	n := DefaultWorkers()
	assert.Greater(t, n, 0)
	assert.LessOrEqual(t, n, 8)
}
