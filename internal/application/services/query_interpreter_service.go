package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/domain/providers"
	"github.com/danielcwq/stall-finder/internal/infrastructure/observability"
	apperrors "github.com/danielcwq/stall-finder/pkg/errors"
)

const interpretSystemPrompt = `You extract structured search intent from a food search query in Singapore.
Respond with a single JSON object and nothing else, using exactly these keys:
{
  "food_query": string,            // the food or dish the user wants, rewritten as a short search phrase
  "location_name": string | null,  // a place, neighbourhood or landmark, if mentioned
  "use_current_location": boolean, // true if the user refers to where they are ("near me", "around here")
  "location_intent": "closest" | "nearby" | "in_area" | null,
  "cuisine": string | null,        // e.g. "Chinese", "Malay", "Indian", "Japanese"
  "price": "cheap" | "moderate" | "expensive" | null,
  "exclusions": string[]           // foods or ingredients the user wants to avoid
}
Use null when a field is not mentioned. Do not invent locations.`

var priceSynonyms = map[string]entities.PriceLevel{
	"cheap":       entities.PriceCheap,
	"budget":      entities.PriceCheap,
	"affordable":  entities.PriceCheap,
	"inexpensive": entities.PriceCheap,
	"$":           entities.PriceCheap,
	"moderate":    entities.PriceModerate,
	"mid":         entities.PriceModerate,
	"mid-range":   entities.PriceModerate,
	"midrange":    entities.PriceModerate,
	"reasonable":  entities.PriceModerate,
	"$$":          entities.PriceModerate,
	"expensive":   entities.PriceExpensive,
	"pricey":      entities.PriceExpensive,
	"premium":     entities.PriceExpensive,
	"upscale":     entities.PriceExpensive,
	"$$$":         entities.PriceExpensive,
}

var locationIntentSynonyms = map[string]entities.LocationIntent{
	"closest": entities.LocationIntentClosest,
	"nearest": entities.LocationIntentClosest,
	"near me": entities.LocationIntentClosest,
	"nearby":  entities.LocationIntentNearby,
	"near":    entities.LocationIntentNearby,
	"around":  entities.LocationIntentNearby,
	"in_area": entities.LocationIntentInArea,
	"in area": entities.LocationIntentInArea,
	"in":      entities.LocationIntentInArea,
	"within":  entities.LocationIntentInArea,
}

// QueryInterpreterService turns a free-text query into a ParsedIntent using
// a language model. Model output is decoded leniently; only output that is
// not JSON at all is an error.
type QueryInterpreterService struct {
	completion  providers.CompletionProvider
	temperature float32
}

// NewQueryInterpreterService creates a new query interpreter.
func NewQueryInterpreterService(completion providers.CompletionProvider, temperature float64) *QueryInterpreterService {
	return &QueryInterpreterService{
		completion:  completion,
		temperature: float32(temperature),
	}
}

// Interpret returns the parsed intent, the model latency in milliseconds and
// the raw model output. Transport failures and undecodable output are fatal.
func (s *QueryInterpreterService) Interpret(ctx context.Context, rawQuery string) (*entities.ParsedIntent, int64, string, error) {
	ctx, span := observability.StartSpan(ctx, "QueryInterpreterService.Interpret")
	defer span.End()

	start := time.Now()
	output, err := s.completion.Complete(ctx, providers.CompletionRequest{
		SystemPrompt: interpretSystemPrompt,
		UserMessage:  rawQuery,
		Temperature:  s.temperature,
		MaxTokens:    300,
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		observability.RecordError(span, err)
		return nil, latency, "", apperrors.NewExternalError("query interpretation failed", err)
	}

	intent, err := decodeIntent(output, rawQuery)
	if err != nil {
		observability.RecordError(span, err)
		observability.LoggerFromContext(ctx).Error().Err(err).Str("raw_output", output).Msg("unparseable intent")
		return nil, latency, output, err
	}

	return intent, latency, output, nil
}

// decodeIntent strips code fences, decodes a JSON object and coerces every
// field to its declared type.
func decodeIntent(output, rawQuery string) (*entities.ParsedIntent, error) {
	cleaned := stripCodeFences(output)

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, apperrors.NewParseError(cleaned, err)
	}

	intent := &entities.ParsedIntent{
		Exclusions: []string{},
	}

	if food, ok := coerceString(fields["food_query"]); ok {
		intent.FoodQuery = food
	} else {
		intent.FoodQuery = strings.TrimSpace(rawQuery)
	}
	if name, ok := coerceString(fields["location_name"]); ok {
		intent.LocationName = &name
	}
	intent.UseCurrentLocation = coerceBool(fields["use_current_location"])
	if raw, ok := coerceString(fields["location_intent"]); ok {
		if li, known := locationIntentSynonyms[strings.ToLower(raw)]; known {
			intent.LocationIntent = &li
		}
	}
	if cuisine, ok := coerceString(fields["cuisine"]); ok {
		intent.Cuisine = &cuisine
	}
	if raw, ok := coerceString(fields["price"]); ok {
		if price, known := priceSynonyms[strings.ToLower(raw)]; known {
			intent.Price = &price
		}
	}
	if list, ok := fields["exclusions"].([]interface{}); ok {
		for _, item := range list {
			if term, ok := coerceString(item); ok {
				intent.Exclusions = append(intent.Exclusions, term)
			}
		}
	}

	return intent, nil
}

func stripCodeFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimPrefix(cleaned, "json")
		cleaned = strings.TrimPrefix(cleaned, "JSON")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}

// coerceString formats any JSON scalar as a trimmed string. Null, absent and
// blank values report false.
func coerceString(v interface{}) (string, bool) {
	var s string
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(val)
	default:
		s = fmt.Sprint(val)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// coerceBool applies truthiness: "false", "0" and "no" are false, any other
// non-empty string is true.
func coerceBool(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		if trimmed == "" || trimmed == "no" {
			return false
		}
		if parsed, err := strconv.ParseBool(trimmed); err == nil {
			return parsed
		}
		return true
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	default:
		return true
	}
}
