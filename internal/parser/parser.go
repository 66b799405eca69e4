// Package parser converts a supplier's raw price list into a stream of
// ParsedItem values. Parsers never touch the database and never raise on a
// single bad row — malformed rows are reported to the caller and dropped.
package parser

import (
	"context"

	"github.com/shopspring/decimal"
)

// ParsedItem is one row of a supplier's price list after parsing, before
// matching or feature extraction.
type ParsedItem struct {
	SupplierSKU     string
	Name            string
	Price           decimal.Decimal
	Characteristics map[string]any
}

// RowError reports a single row that failed validation; parsers accumulate
// these instead of aborting the whole parse.
type RowError struct {
	RowNumber int
	Reason    string
	RawRow    map[string]any
}

// Result is everything a single Parse call produces: the rows that parsed
// cleanly and the rows that didn't.
type Result struct {
	Items  []ParsedItem
	Errors []RowError
}

// Config is implemented by every parser-specific configuration type
// (FileParserConfig, CSVConfig, ExcelConfig, GoogleSheetsConfig).
type Config interface {
	Validate() error
}

// Parser converts a source configuration into parsed items. Implementations
// are pure with respect to the supplier catalog: Parse never writes to the
// database, and a malformed row never aborts the whole parse.
type Parser interface {
	// Name identifies this parser in the Registry.
	Name() string
	// ValidateConfig rejects a malformed configuration before Parse runs.
	ValidateConfig(cfg Config) error
	// Parse reads the source described by cfg and returns every row that
	// parsed along with every row that didn't.
	Parse(ctx context.Context, cfg Config) (Result, error)
}
