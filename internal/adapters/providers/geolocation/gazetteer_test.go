package geolocation

import (
	"testing"

	"github.com/danielcwq/stall-finder/internal/domain/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGazetteer_ExactMatchCaseInsensitive(t *testing.T) {
	g := NewSingaporeGazetteer()

	entry, ok := g.Lookup("  BuGiS ")
	require.True(t, ok)
	assert.Equal(t, "bugis", entry.Name)
	assert.Equal(t, providers.Coordinates{Latitude: 1.3008, Longitude: 103.8558}, entry.Coordinates)
}

func TestGazetteer_QueryContainsKey(t *testing.T) {
	g := NewSingaporeGazetteer()

	entry, ok := g.Lookup("Bugis Junction")
	require.True(t, ok)
	assert.Equal(t, "bugis", entry.Name)
}

func TestGazetteer_KeyContainsQuery(t *testing.T) {
	g := NewSingaporeGazetteer()

	entry, ok := g.Lookup("jurong")
	require.True(t, ok)
	assert.Equal(t, "jurong east", entry.Name)
}

func TestGazetteer_ExactBeatsEarlierSubstring(t *testing.T) {
	g := NewGazetteer([]GazetteerEntry{
		loc("tampines east", 1.0, 1.0),
		loc("tampines", 2.0, 2.0),
	})

	entry, ok := g.Lookup("tampines")
	require.True(t, ok)
	assert.Equal(t, 2.0, entry.Coordinates.Latitude)
}

func TestGazetteer_TableOrderBreaksTies(t *testing.T) {
	first := NewGazetteer([]GazetteerEntry{loc("bukit timah", 1, 1), loc("bukit batok", 2, 2)})
	second := NewGazetteer([]GazetteerEntry{loc("bukit batok", 2, 2), loc("bukit timah", 1, 1)})

	a, ok := first.Lookup("bukit")
	require.True(t, ok)
	b, ok := second.Lookup("bukit")
	require.True(t, ok)

	assert.Equal(t, "bukit timah", a.Name)
	assert.Equal(t, "bukit batok", b.Name)

	// Stable across repeated calls.
	for i := 0; i < 20; i++ {
		again, _ := first.Lookup("bukit")
		assert.Equal(t, "bukit timah", again.Name)
	}
}

func TestGazetteer_NoMatch(t *testing.T) {
	g := NewSingaporeGazetteer()

	_, ok := g.Lookup("kuala lumpur")
	assert.False(t, ok)
	_, ok = g.Lookup("   ")
	assert.False(t, ok)
}
