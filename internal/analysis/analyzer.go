package analysis

import (
	"context"
	"fmt"
	"sort"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

// CategoryEshopDetection is the sentinel category whose rawData decides the
// analysis' isEshop flag.
const CategoryEshopDetection = "eshop_detection"

// RawKeyIsEshop is the rawData key the eshop detector sets.
const RawKeyIsEshop = "isEshop"

// Result is what one analyzer produces for its category.
type Result struct {
	Success      bool
	Issues       []domain.Issue
	RawData      map[string]interface{}
	Score        int
	ErrorMessage string
}

// Analyzer inspects a lead's site and emits issues plus a score in its
// category. Implementations must be stateless and safe for concurrent use.
type Analyzer interface {
	// Category is unique per analyzer.
	Category() string
	// Priority orders execution; lower runs first.
	Priority() int
	// IsUniversal analyzers run regardless of industry.
	IsUniversal() bool
	// Industry is the single industry a non-universal analyzer applies to.
	Industry() string
	// Analyze runs the inspection, bounded by ctx.
	Analyze(ctx context.Context, lead *domain.Lead) (*Result, error)
}

// Registry holds the registered analyzer set keyed by category.
type Registry struct {
	analyzers map[string]Analyzer
}

// NewRegistry creates an empty analyzer registry.
func NewRegistry() *Registry {
	return &Registry{analyzers: make(map[string]Analyzer)}
}

// Register adds an analyzer; duplicate categories are a programming error.
func (r *Registry) Register(a Analyzer) error {
	if _, exists := r.analyzers[a.Category()]; exists {
		return fmt.Errorf("analyzer category %q already registered", a.Category())
	}
	r.analyzers[a.Category()] = a
	return nil
}

// MustRegister registers or panics. Used at startup wiring.
func (r *Registry) MustRegister(a Analyzer) {
	if err := r.Register(a); err != nil {
		panic(err)
	}
}

// Get returns the analyzer owning a category, or nil.
func (r *Registry) Get(category string) Analyzer {
	return r.analyzers[category]
}

// Select filters and orders the registered set for one lead:
// profile-disabled categories are dropped, then only universal analyzers
// plus the lead industry's analyzers remain, sorted by effective priority
// (profile override wins over the analyzer default).
func (r *Registry) Select(profile *domain.DiscoveryProfile, industry string) []Analyzer {
	var selected []Analyzer
	for _, a := range r.analyzers {
		if profile.CategoryDisabled(a.Category()) {
			continue
		}
		if !a.IsUniversal() && (industry == "" || a.Industry() != industry) {
			continue
		}
		selected = append(selected, a)
	}
	sort.Slice(selected, func(i, j int) bool {
		pi := profile.EffectivePriority(selected[i].Category(), selected[i].Priority())
		pj := profile.EffectivePriority(selected[j].Category(), selected[j].Priority())
		if pi != pj {
			return pi < pj
		}
		return selected[i].Category() < selected[j].Category()
	})
	return selected
}
