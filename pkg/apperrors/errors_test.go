package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedConstructors(t *testing.T) {
	tests := []struct {
		name    string
		build   func(string) *AppError
		wantTyp ErrorType
	}{
		{"validation", Validation, ValidationErrorType},
		{"parser", Parser, ParserErrorType},
		{"database", Database, DatabaseErrorType},
		{"security", Security, SecurityErrorType},
		{"not_found", NotFound, NotFoundErrorType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build("boom")
			require.NotNil(t, err)
			assert.Equal(t, tt.wantTyp, err.Type)
			assert.Equal(t, "boom", err.Message)
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation never retried", Validation("bad input"), false},
		{"security never retried", Security("path traversal"), false},
		{"parser retried", Parser("source unreachable"), true},
		{"database retried", Database("connection reset"), true},
		{"nil error", nil, false},
		{"plain timeout error", errors.New("context deadline exceeded"), true},
		{"plain unrelated error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWrapPreservesType(t *testing.T) {
	inner := Parser("timeout talking to sheets API")
	wrapped := Wrap(inner, "fetching master sheet")

	assert.Equal(t, ParserErrorType, wrapped.Type)
	assert.Contains(t, wrapped.Message, "fetching master sheet")
	assert.Contains(t, wrapped.Message, "timeout talking to sheets API")
}

func TestMethodWrapAttachesCauseKeepsType(t *testing.T) {
	cause := errors.New("connection refused")
	err := Database("claim: rpop pending lane").Wrap(cause)

	assert.Equal(t, DatabaseErrorType, err.Type)
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, IsRetryable(err))
}

func TestWithContextAndCode(t *testing.T) {
	err := Validation("negative price").WithContext("field", "current_price").WithCode("E_PRICE_NEGATIVE")

	assert.Equal(t, "E_PRICE_NEGATIVE", err.Code)
	assert.Equal(t, "current_price", err.Context["field"])
}

func TestIsMatchesTypeAndCode(t *testing.T) {
	a := Validation("x").WithCode("DUP")
	b := Validation("y").WithCode("DUP")
	c := Validation("y").WithCode("OTHER")

	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
}
