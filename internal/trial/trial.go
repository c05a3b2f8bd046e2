// Package trial models trial documents: identifiers, the accrual summary
// and the step/arm/dose treatment structure with its match declarations.
package trial

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oncomatch/matchengine/internal/match"
)

// Treatment level kinds, recorded on emitted matches as match_level.
const (
	LevelStep = "step"
	LevelArm  = "arm"
	LevelDose = "dose"
)

// Accrual statuses recorded on emitted matches.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Trial is one trial document.
type Trial struct {
	ProtocolID    FlexString    `json:"protocol_id,omitempty" yaml:"protocol_id,omitempty"`
	ProtocolNo    string        `json:"protocol_no,omitempty" yaml:"protocol_no,omitempty"`
	NCTID         string        `json:"nct_id" yaml:"nct_id"`
	Summary       *Summary      `json:"_summary,omitempty" yaml:"_summary,omitempty"`
	TreatmentList TreatmentList `json:"treatment_list" yaml:"treatment_list"`
}

// Summary carries curation metadata about the trial as a whole.
type Summary struct {
	TumorTypes         []string      `json:"tumor_types,omitempty" yaml:"tumor_types,omitempty"`
	CoordinatingCenter string        `json:"coordinating_center,omitempty" yaml:"coordinating_center,omitempty"`
	Status             []StatusEntry `json:"status,omitempty" yaml:"status,omitempty"`
}

// StatusEntry is one entry of the summary status list; only the first entry
// determines the accrual status.
type StatusEntry struct {
	Value string `json:"value" yaml:"value"`
}

// TreatmentList holds the trial's treatment steps.
type TreatmentList struct {
	Steps []Step `json:"step" yaml:"step"`
}

// Step is a treatment step, optionally carrying arms and a match clause.
type Step struct {
	InternalID FlexString `json:"step_internal_id,omitempty" yaml:"step_internal_id,omitempty"`
	Code       FlexString `json:"step_code,omitempty" yaml:"step_code,omitempty"`
	Suspended  FlexString `json:"step_suspended,omitempty" yaml:"step_suspended,omitempty"`
	Match      []Clause   `json:"match,omitempty" yaml:"match,omitempty"`
	Arms       []Arm      `json:"arm,omitempty" yaml:"arm,omitempty"`
}

// Arm is a treatment arm under a step.
type Arm struct {
	InternalID  FlexString `json:"arm_internal_id,omitempty" yaml:"arm_internal_id,omitempty"`
	Code        FlexString `json:"arm_code,omitempty" yaml:"arm_code,omitempty"`
	Suspended   FlexString `json:"arm_suspended,omitempty" yaml:"arm_suspended,omitempty"`
	Description string     `json:"arm_description,omitempty" yaml:"arm_description,omitempty"`
	Type        string     `json:"arm_type,omitempty" yaml:"arm_type,omitempty"`
	Match       []Clause   `json:"match,omitempty" yaml:"match,omitempty"`
	DoseLevels  []Dose     `json:"dose_level,omitempty" yaml:"dose_level,omitempty"`
}

// Dose is a dose level under an arm.
type Dose struct {
	InternalID FlexString `json:"level_internal_id,omitempty" yaml:"level_internal_id,omitempty"`
	Code       FlexString `json:"level_code,omitempty" yaml:"level_code,omitempty"`
	Suspended  FlexString `json:"level_suspended,omitempty" yaml:"level_suspended,omitempty"`
	Match      []Clause   `json:"match,omitempty" yaml:"match,omitempty"`
}

// Level is one treatment node that declares a match clause, flattened for
// evaluation.
type Level struct {
	Kind           string
	InternalID     string
	Code           string
	Suspended      bool
	ArmDescription string
	ArmType        string
	Clause         Clause
}

// Parse decodes a trial document from JSON.
func Parse(doc []byte) (*Trial, error) {
	var t Trial
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, fmt.Errorf("decode trial: %w", err)
	}
	return &t, nil
}

// ParseYAML decodes a trial curation file.
func ParseYAML(doc []byte) (*Trial, error) {
	var t Trial
	if err := yaml.Unmarshal(doc, &t); err != nil {
		return nil, fmt.Errorf("decode trial: %w", err)
	}
	return &t, nil
}

// Validate checks the identifiers and treatment structure a trial document
// must carry before evaluation, including the grammar of every declared
// match clause.
func (t *Trial) Validate() error {
	if t.ProtocolNo == "" {
		return fmt.Errorf("trial missing protocol_no")
	}
	if t.ProtocolID.String() == "" {
		return fmt.Errorf("trial %s: missing protocol_id", t.ProtocolNo)
	}
	if t.NCTID == "" {
		return fmt.Errorf("trial %s: missing nct_id", t.ProtocolNo)
	}
	if len(t.TreatmentList.Steps) == 0 {
		return fmt.Errorf("trial %s: treatment_list has no steps", t.ProtocolNo)
	}
	for si, step := range t.TreatmentList.Steps {
		for _, c := range step.Match {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("trial %s step %d: %w", t.ProtocolNo, si, err)
			}
		}
		for _, arm := range step.Arms {
			for _, c := range arm.Match {
				if err := c.Validate(); err != nil {
					return fmt.Errorf("trial %s arm %s: %w", t.ProtocolNo, arm.Code.String(), err)
				}
			}
			for _, dose := range arm.DoseLevels {
				for _, c := range dose.Match {
					if err := c.Validate(); err != nil {
						return fmt.Errorf("trial %s dose %s: %w", t.ProtocolNo, dose.Code.String(), err)
					}
				}
			}
		}
	}
	return nil
}

// MatchLevels returns every treatment node declaring a match clause, in
// document order: each step, then its arms, then each arm's dose levels.
// Only the first clause of a match declaration is evaluated.
func (t *Trial) MatchLevels() []Level {
	var levels []Level
	for _, step := range t.TreatmentList.Steps {
		if len(step.Match) > 0 {
			levels = append(levels, Level{
				Kind:       LevelStep,
				InternalID: step.InternalID.String(),
				Code:       step.Code.String(),
				Suspended:  suspendedFlag(step.Suspended),
				Clause:     step.Match[0],
			})
		}
		for _, arm := range step.Arms {
			if len(arm.Match) > 0 {
				levels = append(levels, Level{
					Kind:           LevelArm,
					InternalID:     arm.InternalID.String(),
					Code:           arm.Code.String(),
					Suspended:      suspendedFlag(arm.Suspended),
					ArmDescription: arm.Description,
					ArmType:        arm.Type,
					Clause:         arm.Match[0],
				})
			}
			for _, dose := range arm.DoseLevels {
				if len(dose.Match) > 0 {
					levels = append(levels, Level{
						Kind:       LevelDose,
						InternalID: dose.InternalID.String(),
						Code:       dose.Code.String(),
						Suspended:  suspendedFlag(dose.Suspended),
						Clause:     dose.Match[0],
					})
				}
			}
		}
	}
	return levels
}

// AccrualStatus returns "open" unless the first summary status entry says
// the trial is not open to accrual.
func (t *Trial) AccrualStatus() string {
	if t.Summary != nil && len(t.Summary.Status) > 0 {
		if !strings.EqualFold(t.Summary.Status[0].Value, "open to accrual") {
			return StatusClosed
		}
	}
	return StatusOpen
}

// CancerTypeMatch classifies the trial's declared tumor types: all_solid or
// all_liquid when the summary names a group sentinel, specific otherwise,
// unknown when the summary carries no tumor types.
func (t *Trial) CancerTypeMatch() string {
	if t.Summary == nil || t.Summary.TumorTypes == nil {
		return match.CancerTypeUnknown
	}
	for _, tt := range t.Summary.TumorTypes {
		if tt == "_SOLID_" {
			return match.CancerTypeAllSolid
		}
	}
	for _, tt := range t.Summary.TumorTypes {
		if tt == "_LIQUID_" {
			return match.CancerTypeAllLiquid
		}
	}
	return match.CancerTypeSpecific
}

// CoordinatingCenter returns the summary's coordinating center, or
// "unknown" when none is declared.
func (t *Trial) CoordinatingCenter() string {
	if t.Summary == nil || t.Summary.CoordinatingCenter == "" {
		return "unknown"
	}
	return t.Summary.CoordinatingCenter
}

func suspendedFlag(v FlexString) bool {
	switch strings.ToLower(strings.TrimSpace(string(v))) {
	case "y", "yes", "true":
		return true
	}
	return false
}

// FlexString is a string that also accepts numeric and boolean scalars when
// decoding, since curation files are inconsistent about quoting ids.
type FlexString string

func (f FlexString) String() string { return string(f) }

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexString(flexScalar(v))
	return nil
}

func (f *FlexString) UnmarshalYAML(value *yaml.Node) error {
	var v any
	if err := value.Decode(&v); err != nil {
		return err
	}
	*f = FlexString(flexScalar(v))
	return nil
}

func flexScalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
