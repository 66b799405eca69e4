package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileParserConfigValidate(t *testing.T) {
	base := FileParserConfig{FilePath: "prices.csv", HeaderRow: 1, DataStartRow: 2}
	assert.NoError(t, base.Validate())

	missingPath := base
	missingPath.FilePath = ""
	assert.Error(t, missingPath.Validate())

	badHeaderRow := base
	badHeaderRow.HeaderRow = 0
	assert.Error(t, badHeaderRow.Validate())

	headerEndBeforeStart := base
	headerEndBeforeStart.HeaderRowEnd = 0
	headerEndBeforeStart.HeaderRow = 3
	headerEndBeforeStart.DataStartRow = 3
	assert.Error(t, headerEndBeforeStart.Validate())

	badMapping := base
	badMapping.ColumnMapping = map[string]string{"barcode": "UPC"}
	assert.Error(t, badMapping.Validate())

	goodMapping := base
	goodMapping.ColumnMapping = map[string]string{"sku": "Item Code", "price": "Unit Price"}
	assert.NoError(t, goodMapping.Validate())
}

func TestExcelConfigRequiresSheetName(t *testing.T) {
	cfg := ExcelConfig{FileParserConfig: FileParserConfig{FilePath: "x.xlsx", HeaderRow: 1, DataStartRow: 2}}
	assert.Error(t, cfg.Validate())

	cfg.SheetName = "Sheet1"
	assert.NoError(t, cfg.Validate())
}

func TestGoogleSheetsConfigValidate(t *testing.T) {
	valid := GoogleSheetsConfig{
		URL:          "https://docs.google.com/spreadsheets/d/abc/export?format=csv",
		SheetName:    "Prices",
		HeaderRow:    1,
		DataStartRow: 2,
	}
	assert.NoError(t, valid.Validate())

	badURL := valid
	badURL.URL = "not-a-url"
	assert.Error(t, badURL.Validate())

	dataStartTooLow := valid
	dataStartTooLow.DataStartRow = 1
	assert.Error(t, dataStartTooLow.Validate())
}
