package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// CSVParser reads a delimited file into ParsedItems using encoding/csv.
type CSVParser struct{}

// NewCSVParser builds a CSVParser.
func NewCSVParser() *CSVParser { return &CSVParser{} }

// Name identifies this parser in the Registry.
func (p *CSVParser) Name() string { return "csv" }

// ValidateConfig requires a CSVConfig and delegates to its own Validate.
func (p *CSVParser) ValidateConfig(cfg Config) error {
	c, ok := cfg.(CSVConfig)
	if !ok {
		return apperrors.Validation("csv parser requires a CSVConfig").WithCode("E_PARSER_CONFIG")
	}
	return c.Validate()
}

// Parse opens the configured file and decodes rows starting at
// DataStartRow, mapping columns per ColumnMapping (or falling back to
// header names matching "sku"/"name"/"price").
func (p *CSVParser) Parse(ctx context.Context, cfg Config) (Result, error) {
	c, ok := cfg.(CSVConfig)
	if !ok {
		return Result{}, apperrors.Validation("csv parser requires a CSVConfig").WithCode("E_PARSER_CONFIG")
	}
	if err := c.Validate(); err != nil {
		return Result{}, err
	}

	f, err := os.Open(c.FilePath)
	if err != nil {
		return Result{}, apperrors.Parser("open csv file").Wrap(err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if c.Delimiter != 0 {
		reader.Comma = c.Delimiter
	}
	reader.FieldsPerRecord = -1

	var headers []string
	var result Result
	rowNum := 0
	for {
		select {
		case <-ctx.Done():
			return result, apperrors.Parser("csv parse cancelled").Wrap(ctx.Err())
		default:
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			result.Errors = append(result.Errors, RowError{RowNumber: rowNum, Reason: err.Error()})
			continue
		}

		if rowNum >= c.HeaderRow && rowNum <= headerEndRow(c.FileParserConfig) {
			if rowNum == headerEndRow(c.FileParserConfig) {
				headers = record
			}
			continue
		}
		if rowNum < c.DataStartRow {
			continue
		}

		item, rowErr := decodeRow(headers, record, c.ColumnMapping, c.CharacteristicColumns, rowNum)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Items = append(result.Items, *item)
	}
	return result, nil
}

func headerEndRow(c FileParserConfig) int {
	if c.HeaderRowEnd != 0 {
		return c.HeaderRowEnd
	}
	return c.HeaderRow
}

// decodeRow maps a raw CSV record to a ParsedItem using column_mapping (or,
// for unmapped fields, a header named sku/name/price) then applies the row-level validation rules
// spec.md §4.2 requires: non-empty sku/name, price >= 0.
func decodeRow(headers, record []string, columnMapping map[string]string, characteristicCols []string, rowNum int) (*ParsedItem, *RowError) {
	col := func(field string) string {
		name := columnMapping[field]
		if name == "" {
			name = field
		}
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), name) && i < len(record) {
				return strings.TrimSpace(record[i])
			}
		}
		return ""
	}

	raw := map[string]any{}
	for i, h := range headers {
		if i < len(record) {
			raw[h] = record[i]
		}
	}

	sku := col("sku")
	name := col("name")
	priceStr := col("price")

	if sku == "" {
		return nil, &RowError{RowNumber: rowNum, Reason: "supplier_sku is empty", RawRow: raw}
	}
	if name == "" {
		return nil, &RowError{RowNumber: rowNum, Reason: "name is empty", RawRow: raw}
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, &RowError{RowNumber: rowNum, Reason: fmt.Sprintf("price %q is not a valid decimal", priceStr), RawRow: raw}
	}
	if price.IsNegative() {
		return nil, &RowError{RowNumber: rowNum, Reason: "price is negative", RawRow: raw}
	}

	characteristics := map[string]any{}
	for _, key := range characteristicCols {
		if v := col(key); v != "" {
			characteristics[key] = v
		}
	}

	return &ParsedItem{SupplierSKU: sku, Name: name, Price: price, Characteristics: characteristics}, nil
}
