package matching

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed rules.schema.json
var rulesSchema []byte

// Rules holds every tunable weight and threshold of the scoring engine and
// the classifier.
type Rules struct {
	BillExactAlnum       float64 `json:"bill_exact_alnum"`
	BillExactMedium      float64 `json:"bill_exact_medium"`
	BillExactShort       float64 `json:"bill_exact_short"`
	BillFuzzyShortWeight float64 `json:"bill_fuzzy_short_weight"`
	BillFuzzyWeight      float64 `json:"bill_fuzzy_weight"`
	VendorWeight         float64 `json:"vendor_weight"`
	ItemWeight           float64 `json:"item_weight"`
	AmountPoints         float64 `json:"amount_points"`
	SignalRatio          float64 `json:"signal_ratio"`
	MatchThreshold       float64 `json:"match_threshold"`
	ReviewThreshold      float64 `json:"review_threshold"`
	MinUsableChars       int     `json:"min_usable_chars"`
}

// DefaultRules returns the canonical weights.
func DefaultRules() Rules {
	return Rules{
		BillExactAlnum:       65,
		BillExactMedium:      50,
		BillExactShort:       35,
		BillFuzzyShortWeight: 0.15,
		BillFuzzyWeight:      0.25,
		VendorWeight:         0.25,
		ItemWeight:           0.10,
		AmountPoints:         10,
		SignalRatio:          65,
		MatchThreshold:       65,
		ReviewThreshold:      35,
		MinUsableChars:       MinUsableChars,
	}
}

// Classifier returns the classifier configured by r.
func (r Rules) Classifier() Classifier {
	return Classifier{High: r.MatchThreshold, Mid: r.ReviewThreshold}
}

// Validate checks cross-field constraints the schema cannot express.
func (r Rules) Validate() error {
	if r.ReviewThreshold > r.MatchThreshold {
		return fmt.Errorf("review_threshold %.1f exceeds match_threshold %.1f", r.ReviewThreshold, r.MatchThreshold)
	}
	return nil
}

// LoadRules reads a JSON rules file, validates it against the embedded
// schema and overlays it on DefaultRules. An empty path yields the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules validates data and overlays it on DefaultRules.
func ParseRules(data []byte) (Rules, error) {
	rules := DefaultRules()
	if err := validateRulesJSON(data); err != nil {
		return rules, err
	}
	if err := json.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("decode rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return rules, err
	}
	return rules, nil
}

func validateRulesJSON(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rules.schema.json", bytes.NewReader(rulesSchema)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("rules.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal rules: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("rules do not match schema: %w", err)
	}
	return nil
}
