package extract

import (
	"regexp"
	"strconv"
)

var (
	voltageRe    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*v(?:olts?)?\b`)
	powerWattsRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*w(?:atts?)?\b`)
)

// ElectronicsExtractor pulls voltage and power_watts, spec.md §4.4's
// electronics feature family.
type ElectronicsExtractor struct{}

// NewElectronicsExtractor builds an ElectronicsExtractor.
func NewElectronicsExtractor() *ElectronicsExtractor { return &ElectronicsExtractor{} }

// Name identifies this extractor in a Pipeline.
func (e *ElectronicsExtractor) Name() string { return "electronics" }

// Extract returns voltage (int, 0..10000) and power_watts (int, 0..100000)
// when present and in range; out-of-range or absent values are omitted.
func (e *ElectronicsExtractor) Extract(text string) map[string]any {
	out := map[string]any{}
	if isSentinel(text) {
		return out
	}

	if m := voltageRe.FindStringSubmatch(text); m != nil {
		if v, ok := parseIntInRange(m[1], 0, 10000); ok {
			out["voltage"] = v
		}
	}
	if m := powerWattsRe.FindStringSubmatch(text); m != nil {
		if v, ok := parseIntInRange(m[1], 0, 100000); ok {
			out["power_watts"] = v
		}
	}
	return out
}

func parseIntInRange(s string, min, max int) (int, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	v := int(f)
	if v < min || v > max {
		return 0, false
	}
	return v, true
}

func parseFloatInRange(s string, min, max float64) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if f < min || f > max {
		return 0, false
	}
	return f, true
}
