package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncomatch/matchengine/internal/match"
)

func boolp(b bool) *bool { return &b }

func sampleRecord() *match.Record {
	return &match.Record{
		MRN:                          "M1",
		SampleID:                     "S1",
		FirstLast:                    "ADA LOVELACE",
		ProtocolNo:                   "17-251",
		NCTID:                        "NCT02296125",
		GenomicAlteration:            "EGFR p.L858R",
		Tier:                         1,
		MatchType:                    match.MatchTypeVariant,
		TrialAccrualStatus:           "open",
		MatchLevel:                   "arm",
		Code:                         "A",
		InternalID:                   "200",
		VitalStatus:                  "alive",
		OncotreePrimaryDiagnosisName: "Lung Adenocarcinoma",
		TrueHugoSymbol:               "EGFR",
		TrueProteinChange:            "p.L858R",
		TrueVariantClassification:    "Missense_Mutation",
		VariantCategory:              "MUTATION",
		ReportDate:                   time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC),
		Chromosome:                   "7",
		Position:                     55259515,
		TrueCDNAChange:               "c.2573T>G",
		ReferenceAllele:              "T",
		TrueTranscriptExon:           21,
		CanonicalStrand:              "+",
		AlleleFraction:               0.35,
		Wildtype:                     boolp(false),
		SortOrder:                    2,
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []*match.Record{sampleRecord()}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Columns, rows[0])

	row := rows[1]
	require.Len(t, row, len(Columns))
	cell := func(col string) string {
		for i, c := range Columns {
			if c == col {
				return row[i]
			}
		}
		t.Fatalf("unknown column %s", col)
		return ""
	}
	assert.Equal(t, "M1", cell("mrn"))
	assert.Equal(t, "EGFR p.L858R", cell("genomic_alteration"))
	assert.Equal(t, "1", cell("tier"))
	assert.Equal(t, "2016-01-01", cell("report_date"))
	assert.Equal(t, "55259515", cell("position"))
	assert.Equal(t, "0.35", cell("allele_fraction"))
	assert.Equal(t, "false", cell("wildtype"))
	assert.Equal(t, "2", cell("sort_order"))
}

func TestWriteCSV_AbsentValuesRenderEmpty(t *testing.T) {
	r := &match.Record{SampleID: "S3", ProtocolNo: "17-251", GenomicAlteration: "None"}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []*match.Record{r}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	row := rows[1]
	idx := func(col string) int {
		for i, c := range Columns {
			if c == col {
				return i
			}
		}
		t.Fatalf("unknown column %s", col)
		return -1
	}
	assert.Empty(t, row[idx("tier")])
	assert.Empty(t, row[idx("report_date")])
	assert.Empty(t, row[idx("allele_fraction")])
	assert.Empty(t, row[idx("wildtype")])
	assert.Equal(t, "0", row[idx("sort_order")])
}

func TestWriteCSV_WildtypeTriState(t *testing.T) {
	states := []struct {
		value *bool
		want  string
	}{
		{nil, ""}, {boolp(true), "true"}, {boolp(false), "false"},
	}
	for _, tt := range states {
		r := sampleRecord()
		r.Wildtype = tt.value
		got := fields(r)
		assert.Equal(t, tt.want, got[len(got)-2])
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []*match.Record{sampleRecord()}))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "S1", decoded[0]["sample_id"])
	assert.Equal(t, "EGFR p.L858R", decoded[0]["genomic_alteration"])
	assert.Equal(t, float64(2), decoded[0]["sort_order"])
}

func TestWriteJSON_NilRecordsEncodeEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.JSONEq(t, "[]", buf.String())
}
