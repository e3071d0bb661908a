package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"placefinder/internal/domain"
)

// ParameterExtractor turns a free-form message into a ParsedQuery with one model call.
type ParameterExtractor struct {
	gen    domain.Generator
	schema *gojsonschema.Schema
}

func NewParameterExtractor(g domain.Generator) (*ParameterExtractor, error) {
	if g == nil {
		return nil, errors.New("generator is required")
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(ResponseSchema()))
	if err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}
	return &ParameterExtractor{gen: g, schema: s}, nil
}

func (e *ParameterExtractor) Extract(ctx context.Context, message string) (domain.ParsedQuery, error) {
	text, err := e.gen.Generate(ctx, domain.GenerationRequest{
		SystemInstruction: SystemInstruction,
		UserMessage:       message,
		ResponseSchema:    ResponseSchema(),
	})
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return domain.ParsedQuery{}, err
		}
		return domain.ParsedQuery{}, domain.ExtractionError("model request failed", err)
	}

	q, err := e.parse(text)
	if err != nil {
		log.Warn().Err(err).Str("reply", truncate(text, 512)).Msg("model reply rejected")
		return domain.ParsedQuery{}, err
	}
	log.Debug().Interface("params", q).Msg("parameters extracted")
	return q, nil
}

func (e *ParameterExtractor) parse(text string) (domain.ParsedQuery, error) {
	text = cleanJSON(text)
	if text == "" {
		return domain.ParsedQuery{}, domain.ExtractionError("no content from model", nil)
	}

	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return domain.ParsedQuery{}, domain.ExtractionError("model reply is not valid JSON", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return domain.ParsedQuery{}, domain.ExtractionError("model reply is not a JSON object", nil)
	}
	// null reads as absent
	for k, v := range obj {
		if v == nil {
			delete(obj, k)
		}
	}

	res, err := e.schema.Validate(gojsonschema.NewGoLoader(obj))
	if err != nil {
		return domain.ParsedQuery{}, domain.ExtractionError("model reply could not be validated", err)
	}
	if !res.Valid() {
		msgs := make([]string, len(res.Errors()))
		for i, d := range res.Errors() {
			msgs[i] = d.String()
		}
		return domain.ParsedQuery{}, domain.ExtractionError("model reply does not match schema", errors.New(strings.Join(msgs, "; ")))
	}

	var q domain.ParsedQuery
	if err := json.Unmarshal([]byte(text), &q); err != nil {
		return domain.ParsedQuery{}, domain.ExtractionError("model reply could not be decoded", err)
	}
	q.Normalize()
	if q.Query == "" || q.Near == "" {
		return domain.ParsedQuery{}, domain.ExtractionError("model reply missing required fields (query or near)", nil)
	}
	return q, nil
}

// cleanJSON strips whitespace and a surrounding markdown code fence, if any.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
