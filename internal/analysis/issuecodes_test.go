package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

type fakeIssueCodeStore struct {
	codes []domain.IssueCode
}

func (f *fakeIssueCodeStore) ListIssueCodes(context.Context) ([]domain.IssueCode, error) {
	return f.codes, nil
}

func TestIssueCodeRegistryLookup(t *testing.T) {
	store := &fakeIssueCodeStore{codes: []domain.IssueCode{
		{Code: "MISSING_TITLE", Severity: domain.SeverityCritical, Category: "seo",
			HumanMessage: "Page is missing a <title> element"},
		{Code: "NO_HTTPS", Severity: domain.SeverityCritical, Category: "security"},
	}}
	reg, err := LoadIssueCodes(context.Background(), store)
	require.NoError(t, err)

	c, ok := reg.Get("MISSING_TITLE")
	require.True(t, ok)
	assert.Equal(t, "seo", c.Category)

	assert.Equal(t, "Page is missing a <title> element", reg.Describe("MISSING_TITLE"))
	// Entries without a message and unknown codes fall back to the raw code.
	assert.Equal(t, "NO_HTTPS", reg.Describe("NO_HTTPS"))
	assert.Equal(t, "NEVER_SEEDED", reg.Describe("NEVER_SEEDED"))
}

func TestIssueCodeRegistryListOrdering(t *testing.T) {
	store := &fakeIssueCodeStore{codes: []domain.IssueCode{
		{Code: "SLOW_RESPONSE", Category: "performance"},
		{Code: "MISSING_H1", Category: "seo"},
		{Code: "MISSING_TITLE", Category: "seo"},
	}}
	reg, err := LoadIssueCodes(context.Background(), store)
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, "SLOW_RESPONSE", list[0].Code)
	assert.Equal(t, "MISSING_H1", list[1].Code)
	assert.Equal(t, "MISSING_TITLE", list[2].Code)
}
