package extract

import "regexp"

var weightKgRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*kg\b`)

// WeightExtractor pulls weight_kg, spec.md §4.4's weight feature family.
type WeightExtractor struct{}

// NewWeightExtractor builds a WeightExtractor.
func NewWeightExtractor() *WeightExtractor { return &WeightExtractor{} }

// Name identifies this extractor in a Pipeline.
func (e *WeightExtractor) Name() string { return "weight" }

// Extract returns weight_kg (0..10000) when present and in range.
func (e *WeightExtractor) Extract(text string) map[string]any {
	out := map[string]any{}
	if isSentinel(text) {
		return out
	}

	if m := weightKgRe.FindStringSubmatch(text); m != nil {
		if v, ok := parseFloatInRange(m[1], 0, 10000); ok {
			out["weight_kg"] = v
		}
	}
	return out
}
