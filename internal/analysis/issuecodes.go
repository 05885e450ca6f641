package analysis

import (
	"context"
	"sort"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
)

// IssueCodeStore reads the persisted issue code registry.
type IssueCodeStore interface {
	ListIssueCodes(ctx context.Context) ([]domain.IssueCode, error)
}

// IssueCodeRegistry resolves issue codes to their severity, category and
// human-readable message. Loaded once at startup; reads are lock-free.
type IssueCodeRegistry struct {
	byCode map[string]domain.IssueCode
}

// LoadIssueCodes reads the registry from the store.
func LoadIssueCodes(ctx context.Context, store IssueCodeStore) (*IssueCodeRegistry, error) {
	codes, err := store.ListIssueCodes(ctx)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]domain.IssueCode, len(codes))
	for _, c := range codes {
		byCode[c.Code] = c
	}
	logger.With("analysis").Info("issue code registry loaded", "codes", len(byCode))
	return &IssueCodeRegistry{byCode: byCode}, nil
}

// EmptyIssueCodeRegistry returns a registry that resolves nothing. Used when
// the store is unavailable so lookups degrade to raw codes.
func EmptyIssueCodeRegistry() *IssueCodeRegistry {
	return &IssueCodeRegistry{byCode: map[string]domain.IssueCode{}}
}

// Get returns the entry for a code.
func (r *IssueCodeRegistry) Get(code string) (domain.IssueCode, bool) {
	c, ok := r.byCode[code]
	return c, ok
}

// Describe returns the human message for a code, falling back to the raw
// code for entries the registry does not know.
func (r *IssueCodeRegistry) Describe(code string) string {
	if c, ok := r.byCode[code]; ok && c.HumanMessage != "" {
		return c.HumanMessage
	}
	return code
}

// List returns all entries ordered by category, then code.
func (r *IssueCodeRegistry) List() []domain.IssueCode {
	out := make([]domain.IssueCode, 0, len(r.byCode))
	for _, c := range r.byCode {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Code < out[j].Code
	})
	return out
}
