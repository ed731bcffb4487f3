package ogi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildForFragmentSubstitutesContent(t *testing.T) {
	b := NewBuilder("Summarize: {fragment}")
	q := b.BuildForFragment("frag-1", "Hello world")

	assert.Equal(t, "Summarize: Hello world", q.Prompt)
	assert.Contains(t, q.Prompt, "Hello world")
	assert.Equal(t, "frag-1", q.FragmentID)
	require.True(t, strings.HasPrefix(q.ID, "sq-"), "id %q should carry the sq- prefix", q.ID)
}

func TestBuilderAppliesModelAndMaxTokens(t *testing.T) {
	b := NewBuilder("Q: {fragment}").WithModel("gpt-4o-mini").WithMaxTokens(512)

	q := b.BuildForFragment("f", "content")
	assert.Equal(t, "gpt-4o-mini", q.Model)
	assert.Equal(t, 512, q.MaxTokens)
}

func TestBuilderWithoutPlaceholder(t *testing.T) {
	// A template with no {fragment} is used verbatim for every fragment.
	b := NewBuilder("count to ten")
	q := b.BuildForFragment("f1", "ignored")
	assert.Equal(t, "count to ten", q.Prompt)
}

func TestBuildBatchMapsAllFragments(t *testing.T) {
	b := NewBuilder("Analyze: {fragment}").WithModel("test-model")
	frags := []Fragment{
		{ID: "f1", Content: "alpha"},
		{ID: "f2", Content: "beta"},
		{ID: "f3", Content: "gamma"},
	}

	queries := b.BuildBatch(frags)
	require.Len(t, queries, 3)
	for i, q := range queries {
		assert.Equal(t, frags[i].ID, q.FragmentID)
		assert.Contains(t, q.Prompt, frags[i].Content)
		assert.Equal(t, "test-model", q.Model)
	}
}

func TestBuilderGeneratesDistinctIDs(t *testing.T) {
	b := NewBuilder("{fragment}")
	seen := make(map[string]bool, 10_000)
	for i := 0; i < 10_000; i++ {
		q := b.BuildForFragment("f", "x")
		if seen[q.ID] {
			t.Fatalf("duplicate id generated: %s", q.ID)
		}
		seen[q.ID] = true
	}
	assert.Len(t, seen, 10_000)
}
