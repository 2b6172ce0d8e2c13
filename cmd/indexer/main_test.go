package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	texts []string
	fail  map[string]bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	if f.fail[text] {
		return nil, errors.New("rate limited")
	}
	return []float32{0.1, 0.2}, nil
}

type fakeIndexer struct {
	ids  []string
	fail map[string]bool
}

func (f *fakeIndexer) Index(_ context.Context, stall *entities.StallRecord, embedding []float32) error {
	if f.fail[stall.PlaceID] {
		return errors.New("typesense 503")
	}
	f.ids = append(f.ids, stall.PlaceID)
	return nil
}

func TestIndexStalls(t *testing.T) {
	stalls := []*entities.StallRecord{
		{PlaceID: "a", Name: "A"},
		{PlaceID: "b", Name: "B"},
		{PlaceID: "c", Name: "C", Embedding: []float32{1, 0}},
		{PlaceID: "d", Name: "D"},
		nil,
		{Name: "no id"},
	}
	embedder := &fakeEmbedder{fail: map[string]bool{"B": true}}
	indexer := &fakeIndexer{fail: map[string]bool{"d": true}}

	indexed, failed := indexStalls(context.Background(), stalls, embedder, indexer)

	assert.Equal(t, 2, indexed)
	assert.Equal(t, 2, failed)
	assert.Equal(t, []string{"a", "c"}, indexer.ids)
	assert.Equal(t, []string{"A", "B", "D"}, embedder.texts)
}

func TestIndexStalls_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	indexer := &fakeIndexer{}
	indexed, failed := indexStalls(ctx, []*entities.StallRecord{{PlaceID: "a", Name: "A"}}, &fakeEmbedder{}, indexer)

	assert.Zero(t, indexed)
	assert.Zero(t, failed)
	assert.Empty(t, indexer.ids)
}

func TestParseInterval(t *testing.T) {
	d, err := parseInterval("", "")
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = parseInterval(" 30m ", "6h")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, d)

	d, err = parseInterval("", "6h")
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, d)

	_, err = parseInterval("soon", "")
	assert.Error(t, err)

	_, err = parseInterval("-1m", "")
	assert.Error(t, err)
}
