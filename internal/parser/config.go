package parser

import (
	"net/url"

	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// allowedColumnMappingKeys restricts FileParserConfig.ColumnMapping to the
// three fields a ParsedItem actually has.
var allowedColumnMappingKeys = map[string]bool{"sku": true, "name": true, "price": true}

// FileParserConfig is the shared configuration shape for every file-backed
// parser (spec.md §4.2).
type FileParserConfig struct {
	FilePath              string            `json:"file_path"`
	ColumnMapping         map[string]string `json:"column_mapping"`
	CharacteristicColumns []string          `json:"characteristic_columns"`
	HeaderRow             int               `json:"header_row"`
	HeaderRowEnd          int               `json:"header_row_end"`
	DataStartRow          int               `json:"data_start_row"`
}

// Validate enforces the header/data row ordering and column_mapping
// whitelist rules spec.md §4.2 describes.
func (c FileParserConfig) Validate() error {
	if c.FilePath == "" {
		return apperrors.Validation("file_path is required").WithCode("E_PARSER_CONFIG")
	}
	if c.HeaderRow < 1 {
		return apperrors.Validation("header_row must be >= 1").WithCode("E_PARSER_CONFIG")
	}
	lastHeaderRow := c.HeaderRow
	if c.HeaderRowEnd != 0 {
		if c.HeaderRowEnd < c.HeaderRow {
			return apperrors.Validation("header_row_end must be >= header_row").WithCode("E_PARSER_CONFIG")
		}
		lastHeaderRow = c.HeaderRowEnd
	}
	if c.DataStartRow <= lastHeaderRow {
		return apperrors.Validation("data_start_row must be > last header row").WithCode("E_PARSER_CONFIG")
	}
	for k := range c.ColumnMapping {
		if !allowedColumnMappingKeys[k] {
			return apperrors.Validation("column_mapping key must be one of sku, name, price: " + k).WithCode("E_PARSER_CONFIG")
		}
	}
	return nil
}

// CSVConfig extends FileParserConfig with delimiter/encoding.
type CSVConfig struct {
	FileParserConfig
	Delimiter rune   `json:"delimiter"`
	Encoding  string `json:"encoding"`
}

// Validate applies FileParserConfig's rules; Delimiter and Encoding are
// neither checked nor defaulted here.
func (c CSVConfig) Validate() error {
	return c.FileParserConfig.Validate()
}

// ExcelConfig extends FileParserConfig with the target sheet name.
type ExcelConfig struct {
	FileParserConfig
	SheetName string `json:"sheet_name"`
}

// Validate requires a non-empty sheet name in addition to the file rules.
func (c ExcelConfig) Validate() error {
	if c.SheetName == "" {
		return apperrors.Validation("sheet_name is required").WithCode("E_PARSER_CONFIG")
	}
	return c.FileParserConfig.Validate()
}

// GoogleSheetsConfig describes a master or supplier sheet reachable over
// the Sheets export HTTP endpoint (original's google_sheets_client.py
// equivalent; only the URL/sheet/row contract is implemented here, per
// spec.md §4.2's non-goal on the Sheets API's own internals).
type GoogleSheetsConfig struct {
	URL                   string            `json:"url"`
	SheetName             string            `json:"sheet_name"`
	ColumnMapping         map[string]string `json:"column_mapping"`
	CharacteristicColumns []string          `json:"characteristic_columns"`
	HeaderRow             int               `json:"header_row"`
	HeaderRowEnd          int               `json:"header_row_end"`
	DataStartRow          int               `json:"data_start_row"`
}

// Validate requires a well-formed URL, a non-empty sheet name, and the same
// header/data-row rules as file parsers except data_start_row >= 2.
func (c GoogleSheetsConfig) Validate() error {
	if c.URL == "" {
		return apperrors.Validation("url is required").WithCode("E_PARSER_CONFIG")
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return apperrors.Validation("url is not a valid absolute URL").WithCode("E_PARSER_CONFIG")
	}
	if c.SheetName == "" {
		return apperrors.Validation("sheet_name is required").WithCode("E_PARSER_CONFIG")
	}
	if c.HeaderRow < 1 {
		return apperrors.Validation("header_row must be >= 1").WithCode("E_PARSER_CONFIG")
	}
	lastHeaderRow := c.HeaderRow
	if c.HeaderRowEnd != 0 {
		if c.HeaderRowEnd < c.HeaderRow {
			return apperrors.Validation("header_row_end must be >= header_row").WithCode("E_PARSER_CONFIG")
		}
		lastHeaderRow = c.HeaderRowEnd
	}
	if c.DataStartRow < 2 {
		return apperrors.Validation("data_start_row must be >= 2 for google sheets sources").WithCode("E_PARSER_CONFIG")
	}
	if c.DataStartRow <= lastHeaderRow {
		return apperrors.Validation("data_start_row must be > last header row").WithCode("E_PARSER_CONFIG")
	}
	for k := range c.ColumnMapping {
		if !allowedColumnMappingKeys[k] {
			return apperrors.Validation("column_mapping key must be one of sku, name, price: " + k).WithCode("E_PARSER_CONFIG")
		}
	}
	return nil
}
