package providers

import "context"

// RerankScore is the cross-encoder relevance of the document at Index.
type RerankScore struct {
	Index int
	Score float64
}

// RerankProvider jointly scores (query, document) pairs.
// Results are ordered most relevant first.
type RerankProvider interface {
	Rerank(ctx context.Context, query string, documents []string) ([]RerankScore, error)
}
