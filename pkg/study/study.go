// Package study implements the tutoring features: topic extraction from an
// uploaded document, feedback on a student's explanation of a concept
// (the Feynman check) and analogy generation. Prompts are sent to a
// Generator; answers are returned as produced by the model.
package study

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rhuss/feynmind/pkg/api"
	"github.com/rhuss/feynmind/pkg/debug"
	"github.com/rhuss/feynmind/pkg/tutor"
)

// DefaultMaxInputChars caps the document text sent for topic extraction.
const DefaultMaxInputChars = 5000

// ErrMalformedTopics is returned when the model does not answer with a JSON
// list of strings. It wraps tutor.ErrUpstream.
var ErrMalformedTopics = fmt.Errorf("%w: topics are not a JSON list of strings", tutor.ErrUpstream)

// Difficulty selects the tone of feedback and the register of analogies.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty maps s case-insensitively to a Difficulty. Anything
// unrecognized, including the empty string, is Medium.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case Easy:
		return Easy
	case Hard:
		return Hard
	default:
		return Medium
	}
}

// Generator produces model text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DocumentSource looks up the caller's documents.
type DocumentSource interface {
	Get(ctx context.Context, fileName string) (*api.Document, error)
}

// Service implements the study features.
type Service struct {
	gen           Generator
	docs          DocumentSource
	maxInputChars int
}

// NewService creates a Service. maxInputChars <= 0 selects
// DefaultMaxInputChars.
func NewService(gen Generator, docs DocumentSource, maxInputChars int) (*Service, error) {
	if gen == nil {
		return nil, tutor.ErrNotConfigured
	}
	if docs == nil {
		return nil, errors.New("document source is required")
	}
	if maxInputChars <= 0 {
		maxInputChars = DefaultMaxInputChars
	}
	return &Service{gen: gen, docs: docs, maxInputChars: maxInputChars}, nil
}

// Topics returns the five most important concepts of the caller's document
// named fileName.
func (s *Service) Topics(ctx context.Context, fileName string) ([]string, error) {
	doc, err := s.docs.Get(ctx, fileName)
	if err != nil {
		return nil, err
	}

	text := truncateRunes(doc.Content, s.maxInputChars)
	debug.Log("tutor", "extracting topics",
		"file", doc.FileName,
		"chars", len([]rune(text)),
	)

	answer, err := s.gen.Generate(ctx, topicsPrompt(text))
	if err != nil {
		return nil, err
	}
	return parseTopics(answer)
}

// Assess asks the model for feedback on explanation of concept, in the tone
// selected by difficulty.
func (s *Service) Assess(ctx context.Context, concept, explanation, difficulty string) (string, error) {
	return s.gen.Generate(ctx, assessPrompt(concept, explanation, ParseDifficulty(difficulty)))
}

// Analogy asks the model for an analogy explaining concept, in the style
// selected by difficulty.
func (s *Service) Analogy(ctx context.Context, concept, difficulty string) (string, error) {
	return s.gen.Generate(ctx, analogyPrompt(concept, ParseDifficulty(difficulty)))
}

func parseTopics(answer string) ([]string, error) {
	var topics []string
	if err := json.Unmarshal([]byte(tutor.StripCodeFences(answer)), &topics); err != nil {
		return nil, ErrMalformedTopics
	}

	out := topics[:0]
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, ErrMalformedTopics
	}
	return out, nil
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
