package extract

// Pipeline runs a fixed set of Extractors over free text and merges their
// disjoint outputs into one characteristics map.
type Pipeline struct {
	extractors []Extractor
}

// NewPipeline builds a Pipeline over the given extractors.
func NewPipeline(extractors ...Extractor) *Pipeline {
	return &Pipeline{extractors: extractors}
}

// DefaultPipeline wires every built-in extractor, the configuration every
// ingestion worker uses.
func DefaultPipeline() *Pipeline {
	return NewPipeline(
		NewElectronicsExtractor(),
		NewDimensionsExtractor(),
		NewStorageExtractor(),
		NewWeightExtractor(),
	)
}

// Run extracts from text with every registered extractor and merges the
// results. Calling Run twice on the same text with the same extractor set
// yields identical output, per spec.md §4.4's idempotence requirement.
func (p *Pipeline) Run(text string) map[string]any {
	merged := map[string]any{}
	for _, e := range p.extractors {
		for k, v := range e.Extract(text) {
			merged[k] = v
		}
	}
	return merged
}

// MergeInto merges newly extracted characteristics into existing without
// overwriting any key already present in existing, per spec.md §4.4.
func MergeInto(existing map[string]any, extracted map[string]any) map[string]any {
	if existing == nil {
		existing = map[string]any{}
	}
	for k, v := range extracted {
		if _, present := existing[k]; !present {
			existing[k] = v
		}
	}
	return existing
}
