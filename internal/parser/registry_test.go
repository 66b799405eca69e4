package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewStubParser()))

	err := r.Register(NewStubParser())
	require.Error(t, err)
}

func TestRegistryGetReturnsNilForUnknownName(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("does-not-exist"))
}

func TestRegistryMustGetNamesAvailableParsers(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewStubParser()))
	require.NoError(t, r.Register(NewCSVParser()))

	_, err := r.MustGet("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv")
	assert.Contains(t, err.Error(), "stub")
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewCSVParser()))
	require.NoError(t, r.Register(NewStubParser()))

	assert.Equal(t, []string{"csv", "stub"}, r.Names())
}
