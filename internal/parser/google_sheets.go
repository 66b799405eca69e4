package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// GoogleSheetsParser fetches a sheet's CSV export over HTTP and decodes it
// the same way CSVParser decodes a local file — the original's
// google_sheets_client.py equivalent, implementing only the documented
// export contract (URL/sheet/row configuration), not the Sheets API itself.
type GoogleSheetsParser struct {
	client *retryablehttp.Client
}

// NewGoogleSheetsParser builds a GoogleSheetsParser with retryablehttp's
// default exponential backoff for transient fetch failures.
func NewGoogleSheetsParser() *GoogleSheetsParser {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &GoogleSheetsParser{client: client}
}

// Name identifies this parser in the Registry.
func (p *GoogleSheetsParser) Name() string { return "google_sheets" }

// ValidateConfig requires a GoogleSheetsConfig and delegates to its own
// Validate.
func (p *GoogleSheetsParser) ValidateConfig(cfg Config) error {
	c, ok := cfg.(GoogleSheetsConfig)
	if !ok {
		return apperrors.Validation("google_sheets parser requires a GoogleSheetsConfig").WithCode("E_PARSER_CONFIG")
	}
	return c.Validate()
}

// Parse fetches c.URL and decodes the response body as CSV, applying the
// same header/data-row and row-validation rules as CSVParser.
func (p *GoogleSheetsParser) Parse(ctx context.Context, cfg Config) (Result, error) {
	c, ok := cfg.(GoogleSheetsConfig)
	if !ok {
		return Result{}, apperrors.Validation("google_sheets parser requires a GoogleSheetsConfig").WithCode("E_PARSER_CONFIG")
	}
	if err := c.Validate(); err != nil {
		return Result{}, err
	}

	headers, rows, err := FetchSheetRows(ctx, p.client, c.URL, c.HeaderRow, c.HeaderRowEnd, c.DataStartRow)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for _, row := range rows {
		item, rowErr := decodeRow(headers, row.Values, c.ColumnMapping, c.CharacteristicColumns, row.Number)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Items = append(result.Items, *item)
	}
	return result, nil
}

// Client exposes the underlying retryablehttp.Client so callers outside the
// parser package (internal/mastersync's directory reader) can fetch other
// sheet schemas through FetchSheetRows without building their own HTTP
// client and retry policy.
func (p *GoogleSheetsParser) Client() *retryablehttp.Client { return p.client }

// SheetRow is one data row fetched by FetchSheetRows, numbered the same way
// RowError.RowNumber is: 1-based, counting every line the reader consumed.
type SheetRow struct {
	Number int
	Values []string
}

// FetchSheetRows fetches url and decodes its body as CSV, skipping the
// header band (headerRow..headerRowEnd, defaulting to headerRow alone when
// headerRowEnd is 0) and rows before dataStartRow. It underlies both the
// supplier-item GoogleSheetsParser and internal/mastersync's master
// directory reader, so the fetch-and-decode logic is written once.
func FetchSheetRows(ctx context.Context, client *retryablehttp.Client, url string, headerRow, headerRowEnd, dataStartRow int) ([]string, []SheetRow, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, apperrors.Parser("build google sheets request").Wrap(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, apperrors.Parser("fetch google sheet").Wrap(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, apperrors.Parser(fmt.Sprintf("google sheet fetch returned status %d", resp.StatusCode)).WithCode("E_PARSER_FETCH")
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1

	headerEnd := headerEndRow(FileParserConfig{HeaderRow: headerRow, HeaderRowEnd: headerRowEnd, DataStartRow: dataStartRow})

	var headers []string
	var rows []SheetRow
	rowNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return nil, nil, apperrors.Parser(fmt.Sprintf("read row %d", rowNum)).Wrap(err)
		}

		if rowNum >= headerRow && rowNum <= headerEnd {
			if rowNum == headerEnd {
				headers = record
			}
			continue
		}
		if rowNum < dataStartRow {
			continue
		}
		rows = append(rows, SheetRow{Number: rowNum, Values: record})
	}
	return headers, rows, nil
}
