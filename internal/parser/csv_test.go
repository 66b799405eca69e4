package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempCSV(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestCSVParserParsesValidRows(t *testing.T) {
	path := writeTempCSV(t, "sku,name,price\nA-1,Widget,9.99\nA-2,Gadget,19.50\n")
	p := NewCSVParser()
	cfg := CSVConfig{FileParserConfig: FileParserConfig{FilePath: path, HeaderRow: 1, DataStartRow: 2}}

	result, err := p.Parse(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "A-1", result.Items[0].SupplierSKU)
	assert.Equal(t, "Widget", result.Items[0].Name)
	assert.True(t, result.Items[0].Price.Equal(decimal.RequireFromString("9.99")))
	assert.Empty(t, result.Errors)
}

func TestCSVParserDropsInvalidRowsWithoutAborting(t *testing.T) {
	path := writeTempCSV(t, "sku,name,price\n,Widget,9.99\nA-2,,19.50\nA-3,Gadget,-1\nA-4,Gizmo,5.00\n")
	p := NewCSVParser()
	cfg := CSVConfig{FileParserConfig: FileParserConfig{FilePath: path, HeaderRow: 1, DataStartRow: 2}}

	result, err := p.Parse(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "A-4", result.Items[0].SupplierSKU)
	assert.Len(t, result.Errors, 3)
}

func TestCSVParserRespectsColumnMapping(t *testing.T) {
	path := writeTempCSV(t, "Item Code,Item Name,Unit Price\nA-1,Widget,9.99\n")
	p := NewCSVParser()
	cfg := CSVConfig{FileParserConfig: FileParserConfig{
		FilePath:     path,
		HeaderRow:    1,
		DataStartRow: 2,
		ColumnMapping: map[string]string{
			"sku":   "Item Code",
			"name":  "Item Name",
			"price": "Unit Price",
		},
	}}

	result, err := p.Parse(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "A-1", result.Items[0].SupplierSKU)
}

func TestCSVParserRejectsWrongConfigType(t *testing.T) {
	p := NewCSVParser()
	_, err := p.Parse(context.Background(), StubConfig{})
	assert.Error(t, err)
}

