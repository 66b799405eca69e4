package parser

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// ExcelParser reads a workbook sheet into ParsedItems, grounded on the
// original's file_reader.py handling of .xlsx supplier price lists.
type ExcelParser struct{}

// NewExcelParser builds an ExcelParser.
func NewExcelParser() *ExcelParser { return &ExcelParser{} }

// Name identifies this parser in the Registry.
func (p *ExcelParser) Name() string { return "excel" }

// ValidateConfig requires an ExcelConfig and delegates to its own Validate.
func (p *ExcelParser) ValidateConfig(cfg Config) error {
	c, ok := cfg.(ExcelConfig)
	if !ok {
		return apperrors.Validation("excel parser requires an ExcelConfig").WithCode("E_PARSER_CONFIG")
	}
	return c.Validate()
}

// Parse opens the workbook and decodes SheetName starting at DataStartRow.
func (p *ExcelParser) Parse(ctx context.Context, cfg Config) (Result, error) {
	c, ok := cfg.(ExcelConfig)
	if !ok {
		return Result{}, apperrors.Validation("excel parser requires an ExcelConfig").WithCode("E_PARSER_CONFIG")
	}
	if err := c.Validate(); err != nil {
		return Result{}, err
	}

	f, err := excelize.OpenFile(c.FilePath)
	if err != nil {
		return Result{}, apperrors.Parser("open excel file").Wrap(err)
	}
	defer f.Close()

	rows, err := f.GetRows(c.SheetName)
	if err != nil {
		return Result{}, apperrors.Parser(fmt.Sprintf("read sheet %q", c.SheetName)).Wrap(err)
	}

	var headers []string
	var result Result
	headerEnd := headerEndRow(c.FileParserConfig)

	for i, record := range rows {
		rowNum := i + 1
		select {
		case <-ctx.Done():
			return result, apperrors.Parser("excel parse cancelled").Wrap(ctx.Err())
		default:
		}

		if rowNum >= c.HeaderRow && rowNum <= headerEnd {
			if rowNum == headerEnd {
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
