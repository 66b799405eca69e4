package parser

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// StubConfig is the (empty) configuration accepted by StubParser.
type StubConfig struct{}

// Validate always succeeds; the stub parser takes no configuration.
func (StubConfig) Validate() error { return nil }

// StubParser emits a single fixed sample row, for tests where a real source
// file isn't available. None of the cmd/ binaries registers it.
type StubParser struct{}

// NewStubParser builds a StubParser.
func NewStubParser() *StubParser { return &StubParser{} }

// Name identifies this parser in the Registry.
func (p *StubParser) Name() string { return "stub" }

// ValidateConfig accepts only a StubConfig value and rejects any other Config.
func (p *StubParser) ValidateConfig(cfg Config) error {
	if _, ok := cfg.(StubConfig); !ok {
		return apperrors.Validation("stub parser requires a StubConfig").WithCode("E_PARSER_CONFIG")
	}
	return nil
}

// Parse returns one fixed sample item, ignoring ctx and cfg.
func (p *StubParser) Parse(ctx context.Context, cfg Config) (Result, error) {
	return Result{
		Items: []ParsedItem{
			{
				SupplierSKU:     "STUB-0001",
				Name:            "Sample Widget 12V",
				Price:           decimal.NewFromFloat(9.99),
				Characteristics: map[string]any{"sample": true},
			},
		},
	}, nil
}
