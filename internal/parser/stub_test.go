package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubParserEmitsSampleRow(t *testing.T) {
	p := NewStubParser()
	require.NoError(t, p.ValidateConfig(StubConfig{}))

	result, err := p.Parse(context.Background(), StubConfig{})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "STUB-0001", result.Items[0].SupplierSKU)
	assert.Empty(t, result.Errors)
}

func TestStubParserRejectsWrongConfigType(t *testing.T) {
	p := NewStubParser()
	assert.Error(t, p.ValidateConfig(CSVConfig{}))
}
