package extract

import "regexp"

// dimensionsRe matches "L x W x H" patterns like "120x60x80cm" or
// "12.5 x 6 x 8 cm".
var dimensionsRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*[x×]\s*(\d+(?:\.\d+)?)\s*[x×]\s*(\d+(?:\.\d+)?)\s*cm\b`)

// DimensionsExtractor pulls dimensions_cm as {length, width, height},
// spec.md §4.4's dimensions feature family.
type DimensionsExtractor struct{}

// NewDimensionsExtractor builds a DimensionsExtractor.
func NewDimensionsExtractor() *DimensionsExtractor { return &DimensionsExtractor{} }

// Name identifies this extractor in a Pipeline.
func (e *DimensionsExtractor) Name() string { return "dimensions" }

// Extract returns dimensions_cm when all three components parse and each
// falls in 0..100000; a partial or out-of-range match is dropped entirely
// since dimensions_cm is a single composite value.
func (e *DimensionsExtractor) Extract(text string) map[string]any {
	out := map[string]any{}
	if isSentinel(text) {
		return out
	}

	m := dimensionsRe.FindStringSubmatch(text)
	if m == nil {
		return out
	}
	length, ok1 := parseFloatInRange(m[1], 0, 100000)
	width, ok2 := parseFloatInRange(m[2], 0, 100000)
	height, ok3 := parseFloatInRange(m[3], 0, 100000)
	if !ok1 || !ok2 || !ok3 {
		return out
	}
	out["dimensions_cm"] = map[string]any{"length": length, "width": width, "height": height}
	return out
}
