package rserrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrorTypeLookup, "column not found")
	assert.Equal(t, "lookup: column not found", err.Error())
	assert.True(t, IsType(err, ErrorTypeLookup))
	assert.False(t, IsType(err, ErrorTypeValidation))
	assert.NotEmpty(t, err.Stack)
}

func TestNewf(t *testing.T) {
	err := Newf(ErrorTypeValidation, "row %d of %d", 5, 3)
	assert.Contains(t, err.Error(), "row 5 of 3")
}

func TestWrap(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Wrap(cause, ErrorTypeInternal, "finishing columns")

	assert.Contains(t, err.Error(), "finishing columns")
	assert.Contains(t, err.Error(), "disk on fire")
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsType(err, ErrorTypeInternal))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeInternal, "nothing"))
}

func TestIsType_WrappedChain(t *testing.T) {
	inner := New(ErrorTypeTypeMismatch, "bad value")
	outer := fmt.Errorf("appending row: %w", inner)
	assert.True(t, IsType(outer, ErrorTypeTypeMismatch))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeTypeMismatch))
	assert.False(t, IsType(nil, ErrorTypeTypeMismatch))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeMissingField, "missing field").
		WithDetail("field", "x").
		WithDetail("row", 7)

	require.NotNil(t, err.Details)
	assert.Equal(t, "x", err.Details["field"])
	assert.Equal(t, 7, err.Details["row"])
}
