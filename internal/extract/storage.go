package extract

import "regexp"

var (
	storageGBRe = regexp.MustCompile(`(?i)(\d+)\s*gb\s*(?:ssd|hdd|storage|rom|disk)\b`)
	memoryGBRe  = regexp.MustCompile(`(?i)(\d+)\s*gb\s*(?:ram|memory)\b`)
)

// StorageExtractor pulls storage_gb and memory_gb, spec.md §4.4's storage
// feature family.
type StorageExtractor struct{}

// NewStorageExtractor builds a StorageExtractor.
func NewStorageExtractor() *StorageExtractor { return &StorageExtractor{} }

// Name identifies this extractor in a Pipeline.
func (e *StorageExtractor) Name() string { return "storage" }

// Extract returns storage_gb (0..100000) and memory_gb (0..1000) when
// present and in range.
func (e *StorageExtractor) Extract(text string) map[string]any {
	out := map[string]any{}
	if isSentinel(text) {
		return out
	}

	if m := storageGBRe.FindStringSubmatch(text); m != nil {
		if v, ok := parseIntInRange(m[1], 0, 100000); ok {
			out["storage_gb"] = v
		}
	}
	if m := memoryGBRe.FindStringSubmatch(text); m != nil {
		if v, ok := parseIntInRange(m[1], 0, 1000); ok {
			out["memory_gb"] = v
		}
	}
	return out
}
