package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleSheetsParserDecodesFetchedCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("sku,name,price\nA-1,Widget,9.99\n"))
	}))
	defer srv.Close()

	p := NewGoogleSheetsParser()
	cfg := GoogleSheetsConfig{URL: srv.URL, SheetName: "Prices", HeaderRow: 1, DataStartRow: 2}
	require.NoError(t, p.ValidateConfig(cfg))

	result, err := p.Parse(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "A-1", result.Items[0].SupplierSKU)
}

func TestGoogleSheetsParserRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewGoogleSheetsParser()
	p.client.RetryMax = 0
	cfg := GoogleSheetsConfig{URL: srv.URL, SheetName: "Prices", HeaderRow: 1, DataStartRow: 2}

	_, err := p.Parse(context.Background(), cfg)
	assert.Error(t, err)
}
