// Package di wires the catalog's services for one command invocation.
package di

import (
	"github.com/samber/do/v2"

	"github.com/cpritcha/catalog/internal/di/providers"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer(opts providers.Options) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, opts)
	do.Provide(injector, providers.ProvideGlobalConfig)
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)

	// Storage and lookup
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideCrossrefClient)

	// Business services
	do.Provide(injector, providers.ProvideIngestService)
	do.Provide(injector, providers.ProvideLinkageService)
	do.Provide(injector, providers.ProvideReviewService)

	return injector
}
