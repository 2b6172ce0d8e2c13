package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/domain/providers"
	apperrors "github.com/danielcwq/stall-finder/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func interpretWith(t *testing.T, output string, raw string) (*entities.ParsedIntent, string, error) {
	t.Helper()
	completion := new(MockCompletionProvider)
	completion.On("Complete", mock.Anything, mock.Anything).Return(output, nil)

	svc := NewQueryInterpreterService(completion, 0)
	intent, _, rawOut, err := svc.Interpret(context.Background(), raw)
	return intent, rawOut, err
}

func TestInterpret_FullObject(t *testing.T) {
	output := "```json\n" + `{"food_query":"chicken rice","location_name":"Maxwell","use_current_location":false,"location_intent":"nearest","cuisine":"Chinese","price":"budget","exclusions":["chilli"]}` + "\n```"

	intent, rawOut, err := interpretWith(t, output, "cheap chicken rice near maxwell no chilli")
	require.NoError(t, err)
	assert.Equal(t, output, rawOut)

	assert.Equal(t, "chicken rice", intent.FoodQuery)
	require.NotNil(t, intent.LocationName)
	assert.Equal(t, "Maxwell", *intent.LocationName)
	require.NotNil(t, intent.LocationIntent)
	assert.Equal(t, entities.LocationIntentClosest, *intent.LocationIntent)
	require.NotNil(t, intent.Price)
	assert.Equal(t, entities.PriceCheap, *intent.Price)
	assert.Equal(t, "Chinese", intent.CuisineValue())
	assert.Equal(t, []string{"chilli"}, intent.Exclusions)
}

func TestInterpret_SendsQueryAndTemperature(t *testing.T) {
	completion := new(MockCompletionProvider)
	completion.On("Complete", mock.Anything, mock.MatchedBy(func(req providers.CompletionRequest) bool {
		return req.UserMessage == "katong laksa" && req.Temperature == 0 && strings.Contains(req.SystemPrompt, "food_query")
	})).Return(`{"food_query":"laksa"}`, nil)

	svc := NewQueryInterpreterService(completion, 0)
	intent, latency, _, err := svc.Interpret(context.Background(), "katong laksa")
	require.NoError(t, err)
	assert.Equal(t, "laksa", intent.FoodQuery)
	assert.GreaterOrEqual(t, latency, int64(0))
	completion.AssertExpectations(t)
}

func TestInterpret_FoodQueryFallsBackToRawQuery(t *testing.T) {
	for _, output := range []string{`{}`, `{"food_query":null}`, `{"food_query":"   "}`} {
		intent, _, err := interpretWith(t, output, "  mee pok  ")
		require.NoError(t, err)
		assert.Equal(t, "mee pok", intent.FoodQuery, output)
		assert.NotNil(t, intent.Exclusions)
	}
}

func TestInterpret_CoercesTypes(t *testing.T) {
	intent, _, err := interpretWith(t,
		`{"food_query":42,"use_current_location":"yes","cuisine":true,"exclusions":"beef","price":"$$","location_intent":"around"}`,
		"q")
	require.NoError(t, err)

	assert.Equal(t, "42", intent.FoodQuery)
	assert.True(t, intent.UseCurrentLocation)
	assert.Equal(t, "true", intent.CuisineValue())
	assert.Equal(t, []string{}, intent.Exclusions)
	assert.Equal(t, "moderate", intent.PriceValue())
	require.NotNil(t, intent.LocationIntent)
	assert.Equal(t, entities.LocationIntentNearby, *intent.LocationIntent)
}

func TestInterpret_UnknownEnumsBecomeNull(t *testing.T) {
	intent, _, err := interpretWith(t, `{"food_query":"satay","price":"free","location_intent":"somewhere"}`, "satay")
	require.NoError(t, err)
	assert.Nil(t, intent.Price)
	assert.Nil(t, intent.LocationIntent)
}

func TestInterpret_UnparseableIsFatal(t *testing.T) {
	output := "Sure! Here is what I found: " + strings.Repeat("x", 200)
	_, rawOut, err := interpretWith(t, output, "laksa")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeParse))
	assert.Equal(t, output, rawOut)
	assert.Contains(t, err.Error(), output[:100])
	assert.NotContains(t, err.Error(), output[:101])
}

func TestInterpret_CompletionFailureIsFatal(t *testing.T) {
	completion := new(MockCompletionProvider)
	completion.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("503"))

	svc := NewQueryInterpreterService(completion, 0)
	_, _, _, err := svc.Interpret(context.Background(), "laksa")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestCoerceBool(t *testing.T) {
	falsy := []interface{}{nil, false, 0.0, "", "false", "FALSE", "0", "no", []interface{}{}}
	for _, v := range falsy {
		assert.False(t, coerceBool(v), "%#v", v)
	}
	truthy := []interface{}{true, 1.0, "true", "1", "yes", "sure", []interface{}{"x"}}
	for _, v := range truthy {
		assert.True(t, coerceBool(v), "%#v", v)
	}
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("  {\"a\":1}  "))
}
