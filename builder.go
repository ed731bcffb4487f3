package ogi

import (
	"strings"

	"github.com/google/uuid"
)

// fragmentPlaceholder is substituted with fragment content in the template.
const fragmentPlaceholder = "{fragment}"

// Builder turns a prompt template plus document fragments into a batch of
// SubQueries. The template may contain a {fragment} placeholder; model and
// max-tokens settings apply to every query built after they are set.
type Builder struct {
	template  string
	model     string
	maxTokens int
}

// NewBuilder creates a Builder for the given prompt template.
func NewBuilder(template string) *Builder {
	return &Builder{template: template}
}

// WithModel sets the model applied to every subsequently built query.
func (b *Builder) WithModel(name string) *Builder {
	b.model = name
	return b
}

// WithMaxTokens sets the token cap applied to every subsequently built query.
func (b *Builder) WithMaxTokens(n int) *Builder {
	b.maxTokens = n
	return b
}

// BuildForFragment substitutes content for the {fragment} placeholder and
// returns a SubQuery with a fresh globally-unique ID. The "sq-" prefix keeps
// scheduler IDs recognizable in venue logs.
func (b *Builder) BuildForFragment(fragmentID, content string) SubQuery {
	return SubQuery{
		ID:         "sq-" + uuid.NewString(),
		Prompt:     strings.ReplaceAll(b.template, fragmentPlaceholder, content),
		Model:      b.model,
		MaxTokens:  b.maxTokens,
		FragmentID: fragmentID,
	}
}

// BuildBatch maps BuildForFragment over the input fragments.
func (b *Builder) BuildBatch(fragments []Fragment) []SubQuery {
	queries := make([]SubQuery, len(fragments))
	for i, f := range fragments {
		queries[i] = b.BuildForFragment(f.ID, f.Content)
	}
	return queries
}
