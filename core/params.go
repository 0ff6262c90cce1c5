package core

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Method is the scoring method chosen by the operator.
type Method int

const (
	methodUnset Method = iota
	LowestPrice
	AbsolutePoints
	WeightedPoints
)

const (
	methodNameLowestPrice    = "lowest_price"
	methodNameAbsolutePoints = "absolute_points"
	methodNameWeightedPoints = "weighted_points"
)

// legacyMethodLabels maps the free-text labels stored by older records onto
// methods. Matching is by prefix of the folded label.
var legacyMethodLabels = []struct {
	prefix string
	method Method
}{
	{"precio más bajo", LowestPrice},
	{"precio mas bajo", LowestPrice},
	{"sistema de puntos absolutos", AbsolutePoints},
	{"sistema de puntos ponderados", WeightedPoints},
}

var (
	// ErrUnknownMethod is returned when the method is missing or not recognized.
	ErrUnknownMethod = errors.New("unknown evaluation method")
	// ErrInvalidParameter is wrapped by every ValidationError.
	ErrInvalidParameter = errors.New("invalid evaluation parameter")
)

// ValidationError identifies the parameter that failed validation.
type ValidationError struct {
	Field string
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %q (%v): %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrInvalidParameter, e.Err}
}

func (m Method) String() string {
	switch m {
	case LowestPrice:
		return methodNameLowestPrice
	case AbsolutePoints:
		return methodNameAbsolutePoints
	case WeightedPoints:
		return methodNameWeightedPoints
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// Valid reports whether m is one of the recognized methods.
func (m Method) Valid() bool {
	switch m {
	case LowestPrice, AbsolutePoints, WeightedPoints:
		return true
	default:
		return false
	}
}

// RequiresTechnicalThreshold reports whether offers must reach TechMin to qualify.
func (m Method) RequiresTechnicalThreshold() bool {
	return m == AbsolutePoints || m == WeightedPoints
}

func (m Method) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMethod, int(m))
	}
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMethod accepts the canonical method names and the legacy labels.
func ParseMethod(s string) (Method, error) {
	folded := strings.ToLower(strings.Join(strings.Fields(s), " "))
	switch folded {
	case methodNameLowestPrice:
		return LowestPrice, nil
	case methodNameAbsolutePoints:
		return AbsolutePoints, nil
	case methodNameWeightedPoints:
		return WeightedPoints, nil
	}
	if folded != "" {
		for _, label := range legacyMethodLabels {
			if strings.HasPrefix(folded, label.prefix) {
				return label.method, nil
			}
		}
	}
	return methodUnset, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// EvaluationParameters is everything a run needs besides the tender itself.
type EvaluationParameters struct {
	Method Method `json:"method"`

	TechMax    float64 `json:"tech_max,omitempty"`
	TechMin    float64 `json:"tech_min,omitempty"`
	EcoMax     float64 `json:"eco_max,omitempty"`
	WeightTech float64 `json:"weight_tech,omitempty"`
	WeightEco  float64 `json:"weight_eco,omitempty"`

	// TechnicalScores is the global participant -> score map.
	TechnicalScores map[string]float64 `json:"technical_scores,omitempty"`
	// LotTechnicalScores overrides TechnicalScores per lot.
	LotTechnicalScores map[string]map[string]float64 `json:"lot_technical_scores,omitempty"`

	Disqualified       []string `json:"disqualified,omitempty"`
	ApplySingleLotRule bool     `json:"apply_single_lot_rule"`
}

// DefaultParameters returns the parameters the method starts from.
func DefaultParameters(m Method) EvaluationParameters {
	p := EvaluationParameters{Method: m, ApplySingleLotRule: true}
	switch m {
	case AbsolutePoints:
		p.TechMax, p.TechMin, p.EcoMax = 70, 49, 30
	case WeightedPoints:
		p.TechMin, p.WeightTech, p.WeightEco = 70, 70, 30
	}
	return p
}

// Validate checks the knobs the selected method uses.
func (p EvaluationParameters) Validate() error {
	switch p.Method {
	case LowestPrice:
		return nil
	case AbsolutePoints:
		if err := checkFinite("tech_max", p.TechMax); err != nil {
			return err
		}
		if p.TechMax <= 0 {
			return &ValidationError{Field: "tech_max", Value: p.TechMax, Err: errors.New("must be greater than zero")}
		}
		if err := checkRange("tech_min", p.TechMin, 0, p.TechMax); err != nil {
			return err
		}
		if err := checkFinite("eco_max", p.EcoMax); err != nil {
			return err
		}
		if p.EcoMax < 0 {
			return &ValidationError{Field: "eco_max", Value: p.EcoMax, Err: errors.New("must not be negative")}
		}
	case WeightedPoints:
		if err := checkRange("tech_min", p.TechMin, 0, 100); err != nil {
			return err
		}
		if err := checkRange("weight_tech", p.WeightTech, 0, 100); err != nil {
			return err
		}
		if err := checkRange("weight_eco", p.WeightEco, 0, 100); err != nil {
			return err
		}
		if p.WeightTech == 0 && p.WeightEco == 0 {
			return &ValidationError{Field: "weight_tech", Value: p.WeightTech, Err: errors.New("weight_tech and weight_eco cannot both be zero")}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMethod, p.Method)
	}
	return nil
}

func checkFinite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Field: field, Value: v, Err: errors.New("must be a finite number")}
	}
	return nil
}

func checkRange(field string, v, lo, hi float64) error {
	if err := checkFinite(field, v); err != nil {
		return err
	}
	if v < lo || v > hi {
		return &ValidationError{Field: field, Value: v, Err: fmt.Errorf("must be between %g and %g", lo, hi)}
	}
	return nil
}

// RawParameters is the evaluation parameter record as persisted with the
// tender. Numeric values may be numbers or numeric strings.
type RawParameters struct {
	Method             string                    `json:"method"`
	Parameters         map[string]any            `json:"parameters,omitempty"`
	TechnicalScores    map[string]any            `json:"technical_scores,omitempty"`
	LotTechnicalScores map[string]map[string]any `json:"lot_technical_scores,omitempty"`
	Disqualified       []string                  `json:"disqualified,omitempty"`
	ApplySingleLotRule *bool                     `json:"apply_single_lot_rule,omitempty"`
}

// parameterAliases lists, per field, the keys accepted in RawParameters.Parameters.
var parameterAliases = []struct {
	field string
	keys  []string
}{
	{"tech_max", []string{"tech_max", "puntaje_tec_max"}},
	{"tech_min", []string{"tech_min", "puntaje_tec_min"}},
	{"eco_max", []string{"eco_max", "puntaje_eco_max"}},
	{"weight_tech", []string{"weight_tech", "pond_tec"}},
	{"weight_eco", []string{"weight_eco", "pond_eco"}},
}

// ParseParameters turns a persisted parameter record into validated
// EvaluationParameters. Missing knobs take the method defaults.
func ParseParameters(raw RawParameters) (EvaluationParameters, error) {
	method, err := ParseMethod(raw.Method)
	if err != nil {
		return EvaluationParameters{}, err
	}
	params := DefaultParameters(method)

	targets := map[string]*float64{
		"tech_max":    &params.TechMax,
		"tech_min":    &params.TechMin,
		"eco_max":     &params.EcoMax,
		"weight_tech": &params.WeightTech,
		"weight_eco":  &params.WeightEco,
	}
	for _, alias := range parameterAliases {
		for _, key := range alias.keys {
			v, ok := raw.Parameters[key]
			if !ok || isBlank(v) {
				continue
			}
			f, err := toFloat(alias.field, v)
			if err != nil {
				return EvaluationParameters{}, err
			}
			*targets[alias.field] = f
			break
		}
	}

	if len(raw.TechnicalScores) > 0 {
		params.TechnicalScores = make(map[string]float64, len(raw.TechnicalScores))
		for name, v := range raw.TechnicalScores {
			if isBlank(v) {
				continue
			}
			f, err := toFloat(fmt.Sprintf("technical_scores[%s]", name), v)
			if err != nil {
				return EvaluationParameters{}, err
			}
			params.TechnicalScores[name] = f
		}
	}

	if len(raw.LotTechnicalScores) > 0 {
		params.LotTechnicalScores = make(map[string]map[string]float64, len(raw.LotTechnicalScores))
		for lotID, scores := range raw.LotTechnicalScores {
			lotScores := make(map[string]float64, len(scores))
			for name, v := range scores {
				if isBlank(v) {
					continue
				}
				f, err := toFloat(fmt.Sprintf("lot_technical_scores[%s][%s]", lotID, name), v)
				if err != nil {
					return EvaluationParameters{}, err
				}
				lotScores[name] = f
			}
			params.LotTechnicalScores[lotID] = lotScores
		}
	}

	if len(raw.Disqualified) > 0 {
		params.Disqualified = append([]string(nil), raw.Disqualified...)
	}
	if raw.ApplySingleLotRule != nil {
		params.ApplySingleLotRule = *raw.ApplySingleLotRule
	}

	if err := params.Validate(); err != nil {
		return EvaluationParameters{}, err
	}
	return params, nil
}

// DisqualifiedFromFailures extracts the manually disqualified participants
// from phase A failure records, sorted and without duplicates.
func DisqualifiedFromFailures(failures []PhaseAFailure) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, f := range failures {
		if f.DocumentID != -1 {
			continue
		}
		name := DisplayName(f.Participant)
		if name == "" || seen[NameKey(name)] {
			continue
		}
		seen[NameKey(name)] = true
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return compareNames(out[i], out[j]) < 0 })
	return out
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func toFloat(field string, v any) (float64, error) {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, &ValidationError{Field: field, Value: v, Err: err}
	}
	if err := checkFinite(field, f); err != nil {
		return 0, err
	}
	return f, nil
}
