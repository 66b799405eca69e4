package mastersync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supplycatalog/ingestion/internal/catalog"
)

func TestDirectoryReaderParsesValidRowsAndSkipsInvalid(t *testing.T) {
	body := "supplier_name,source_url,format,is_active,notes\n" +
		"Acme Supply,https://example.com/acme.csv,csv,true,preferred\n" +
		",https://example.com/bad.csv,csv,true,\n" +
		"Bad Format Co,https://example.com/x,xml,true,\n" +
		"Bad Active Co,https://example.com/x,csv,maybe,\n" +
		"Legacy Co,https://example.com/legacy.xlsx,excel,false,retiring\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	reader := NewDirectoryReader()
	cfg := DirectoryConfig{URL: srv.URL, SheetName: "Directory", HeaderRow: 1, DataStartRow: 2}

	result, err := reader.Read(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Acme Supply", result.Rows[0].Name)
	assert.Equal(t, catalog.SourceCSV, result.Rows[0].Format)
	assert.True(t, result.Rows[0].IsActive)
	assert.Equal(t, "Legacy Co", result.Rows[1].Name)
	assert.False(t, result.Rows[1].IsActive)

	require.Len(t, result.Errors, 3)
}

func TestDirectoryReaderRecognizesPDFFormat(t *testing.T) {
	body := "supplier_name,source_url,format,is_active,notes\n" +
		"Fax Supplier,,pdf,true,\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	reader := NewDirectoryReader()
	cfg := DirectoryConfig{URL: srv.URL, SheetName: "Directory", HeaderRow: 1, DataStartRow: 2}

	result, err := reader.Read(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, catalog.SourceType("pdf"), result.Rows[0].Format)
}
