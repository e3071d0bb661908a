package app

import (
	"context"
	"strings"

	"placefinder/internal/domain"
)

// SearchService runs one message through extraction and place search.
type SearchService struct {
	extractor domain.Extractor
	places    domain.PlaceSearcher
}

// NewSearchService accepts nil collaborators; a missing one means its credentials
// were not configured and every call reports a configuration error.
func NewSearchService(e domain.Extractor, p domain.PlaceSearcher) *SearchService {
	return &SearchService{extractor: e, places: p}
}

type SearchOptions struct {
	OpenFirst bool
}

// SearchResult carries the parameters alongside the places so callers can show both.
type SearchResult struct {
	Params   domain.ParsedQuery
	Response domain.SearchResponse
}

func (s *SearchService) Search(ctx context.Context, message string, opts SearchOptions) (SearchResult, error) {
	if strings.TrimSpace(message) == "" {
		return SearchResult{}, domain.InvalidInput("missing 'message' in request body")
	}
	if s.extractor == nil || s.places == nil {
		return SearchResult{}, domain.ConfigurationError("API key not configured on server")
	}

	params, err := s.extractor.Extract(ctx, message)
	if err != nil {
		return SearchResult{}, err
	}

	resp, err := s.places.Search(ctx, params)
	if err != nil {
		return SearchResult{Params: params}, err
	}
	if opts.OpenFirst {
		resp = domain.NewSearchResponse(domain.PrioritizeOpen(resp.Results))
	}
	return SearchResult{Params: params, Response: resp}, nil
}
