package mastersync

import (
	"context"
	"strconv"
	"strings"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/internal/parser"
	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// masterHeaders are the column names spec.md §6 recognizes on the master
// sheet. notes is optional; every other column is required per row.
var masterHeaders = struct {
	name, sourceURL, format, isActive, notes string
}{"supplier_name", "source_url", "format", "is_active", "notes"}

// DirectoryConfig locates the master sheet, reusing GoogleSheetsConfig's
// row-window fields (spec.md §6: row 1 is headers, data starts row 2 unless
// overridden).
type DirectoryConfig struct {
	URL          string
	SheetName    string
	HeaderRow    int
	DataStartRow int
}

// Validate delegates to the same rules parser.GoogleSheetsConfig enforces
// for any sheet-backed source.
func (c DirectoryConfig) Validate() error {
	return parser.GoogleSheetsConfig{
		URL: c.URL, SheetName: c.SheetName, HeaderRow: c.HeaderRow, DataStartRow: c.DataStartRow,
	}.Validate()
}

// DirectoryRow is one validated row of the master supplier directory.
type DirectoryRow struct {
	RowNumber  int
	Name       string
	SourceURL  string
	Format     catalog.SourceType
	IsActive   bool
	Notes      string
}

// DirectoryError records a master-sheet row that failed validation; it is
// counted as "skipped" in the sync summary (spec.md §4.7).
type DirectoryError struct {
	RowNumber int
	Reason    string
}

// DirectoryResult is the outcome of reading and validating the master sheet.
type DirectoryResult struct {
	Rows   []DirectoryRow
	Errors []DirectoryError
}

var validFormats = map[string]catalog.SourceType{
	"google_sheets": catalog.SourceGoogleSheets,
	"csv":           catalog.SourceCSV,
	"excel":         catalog.SourceExcel,
	// "pdf" is a recognized master-sheet format (spec.md §6) but has no
	// parser.Registry entry — rows naming it are valid directory entries
	// (the supplier is upserted) but are skipped at parse-task dispatch
	// time, not at directory-read time.
	"pdf": catalog.SourceType("pdf"),
}

// DirectoryReader fetches and validates the master supplier directory sheet,
// reusing parser.FetchSheetRows's HTTP-fetch-and-CSV-decode logic rather
// than re-implementing it for this schema (spec.md §4.7/§6).
type DirectoryReader struct {
	sheets *parser.GoogleSheetsParser
}

// NewDirectoryReader builds a DirectoryReader over its own retryablehttp
// client (parser.NewGoogleSheetsParser's default retry policy).
func NewDirectoryReader() *DirectoryReader {
	return &DirectoryReader{sheets: parser.NewGoogleSheetsParser()}
}

// Read fetches cfg.URL and validates every row against the master-sheet
// schema. Malformed rows are recorded as DirectoryError, never abort the
// whole read.
func (r *DirectoryReader) Read(ctx context.Context, cfg DirectoryConfig) (DirectoryResult, error) {
	if cfg.HeaderRow == 0 {
		cfg.HeaderRow = 1
	}
	if cfg.DataStartRow == 0 {
		cfg.DataStartRow = 2
	}
	if err := cfg.Validate(); err != nil {
		return DirectoryResult{}, err
	}

	headers, rows, err := parser.FetchSheetRows(ctx, r.sheets.Client(), cfg.URL, cfg.HeaderRow, 0, cfg.DataStartRow)
	if err != nil {
		return DirectoryResult{}, err
	}

	col := func(values []string, name string) string {
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), name) && i < len(values) {
				return strings.TrimSpace(values[i])
			}
		}
		return ""
	}

	var result DirectoryResult
	for _, row := range rows {
		name := col(row.Values, masterHeaders.name)
		sourceURL := col(row.Values, masterHeaders.sourceURL)
		formatStr := strings.ToLower(col(row.Values, masterHeaders.format))
		isActiveStr := col(row.Values, masterHeaders.isActive)
		notes := col(row.Values, masterHeaders.notes)

		if name == "" {
			result.Errors = append(result.Errors, DirectoryError{RowNumber: row.Number, Reason: "supplier_name is empty"})
			continue
		}
		format, ok := validFormats[formatStr]
		if !ok {
			result.Errors = append(result.Errors, DirectoryError{RowNumber: row.Number, Reason: "format must be one of google_sheets, csv, excel, pdf: " + formatStr})
			continue
		}
		if format != catalog.SourceType("pdf") && sourceURL == "" {
			result.Errors = append(result.Errors, DirectoryError{RowNumber: row.Number, Reason: "source_url is required"})
			continue
		}
		isActive, err := parseBool(isActiveStr)
		if err != nil {
			result.Errors = append(result.Errors, DirectoryError{RowNumber: row.Number, Reason: "is_active must be a boolean: " + isActiveStr})
			continue
		}

		result.Rows = append(result.Rows, DirectoryRow{
			RowNumber: row.Number,
			Name:      name,
			SourceURL: sourceURL,
			Format:    format,
			IsActive:  isActive,
			Notes:     notes,
		})
	}
	return result, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "y":
		return true, nil
	case "false", "no", "0", "n", "":
		return false, nil
	default:
		if v, err := strconv.ParseBool(s); err == nil {
			return v, nil
		}
		return false, apperrors.Validation("not a boolean").WithCode("E_PARSER_CONFIG")
	}
}
