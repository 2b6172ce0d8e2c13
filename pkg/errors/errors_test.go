package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewParseError_TruncatesSnippet(t *testing.T) {
	text := strings.Repeat("x", 150)
	err := NewParseError(text, errors.New("invalid character"))

	assert.Equal(t, ErrorTypeParse, err.Type)
	assert.Contains(t, err.Message, strings.Repeat("x", 100))
	assert.NotContains(t, err.Message, strings.Repeat("x", 101))
}

func TestNewDegradedError_IncludesStep(t *testing.T) {
	err := NewDegradedError("geocode", "geocoder unavailable", errors.New("status 503"))
	assert.Equal(t, "DEGRADED(geocode): geocoder unavailable: status 503", err.Error())
}

func TestIsType_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("search: %w", NewParseError("{", nil))
	assert.True(t, IsType(wrapped, ErrorTypeParse))
	assert.False(t, IsType(wrapped, ErrorTypeSink))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeParse))
}
