package analyzers

import (
	"time"

	"github.com/mesour/brick-offers-sub004/internal/analysis"
)

// RegisterAll builds the default analyzer registry with a shared fetcher.
func RegisterAll(fetchTimeout time.Duration) *analysis.Registry {
	fetcher := NewFetcher(fetchTimeout)
	registry := analysis.NewRegistry()
	registry.MustRegister(NewEshopDetector(fetcher))
	registry.MustRegister(NewSEOAnalyzer(fetcher))
	registry.MustRegister(NewSecurityAnalyzer(fetcher))
	registry.MustRegister(NewPerformanceAnalyzer(fetcher))
	registry.MustRegister(NewMobileAnalyzer(fetcher))
	registry.MustRegister(NewContentAnalyzer(fetcher))
	registry.MustRegister(NewEshopAnalyzer(fetcher))
	return registry
}
