package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashita-ai/ogi"
)

func validCreate() CreateBatchRequest {
	return CreateBatchRequest{
		Template:  "Summarize: {fragment}",
		Fragments: []ogi.Fragment{{ID: "frag-1", Content: "hello"}},
	}
}

func TestValidateCreateBatch(t *testing.T) {
	assert.NoError(t, ValidateCreateBatch(validCreate()))

	missing := validCreate()
	missing.Template = ""
	assert.ErrorContains(t, ValidateCreateBatch(missing), "template is required")

	long := validCreate()
	long.Template = strings.Repeat("x", MaxTemplateLen+1)
	assert.ErrorContains(t, ValidateCreateBatch(long), "template exceeds")

	empty := validCreate()
	empty.Fragments = nil
	assert.ErrorContains(t, ValidateCreateBatch(empty), "at least one fragment")

	many := validCreate()
	many.Fragments = make([]ogi.Fragment, MaxFragmentsPerReq+1)
	for i := range many.Fragments {
		many.Fragments[i] = ogi.Fragment{ID: "f", Content: "c"}
	}
	assert.ErrorContains(t, ValidateCreateBatch(many), "fragment count")

	noID := validCreate()
	noID.Fragments = []ogi.Fragment{{Content: "orphan"}}
	assert.ErrorContains(t, ValidateCreateBatch(noID), "fragments[0].id")

	big := validCreate()
	big.Fragments = []ogi.Fragment{{ID: "f", Content: strings.Repeat("x", MaxFragmentLen+1)}}
	assert.ErrorContains(t, ValidateCreateBatch(big), "fragments[0] exceeds")

	neg := validCreate()
	neg.MaxTokens = -1
	assert.ErrorContains(t, ValidateCreateBatch(neg), "max_tokens")
}

func TestValidateCollect(t *testing.T) {
	assert.NoError(t, ValidateCollect(CollectRequest{}))
	assert.NoError(t, ValidateCollect(CollectRequest{TimeoutMS: 5000, PerQueryMS: 100}))

	assert.ErrorContains(t, ValidateCollect(CollectRequest{TimeoutMS: -1}), "timeouts")
	assert.ErrorContains(t, ValidateCollect(CollectRequest{PerQueryMS: -1}), "timeouts")

	bad := 1.5
	assert.ErrorContains(t, ValidateCollect(CollectRequest{QuorumFraction: &bad}), "quorum_fraction")

	ok := 0.75
	assert.NoError(t, ValidateCollect(CollectRequest{QuorumFraction: &ok}))
}
