package providers

import (
	"github.com/samber/do/v2"
	"go.uber.org/zap"

	"github.com/cpritcha/catalog/internal/config"
	"github.com/cpritcha/catalog/internal/crossref"
	"github.com/cpritcha/catalog/internal/ingest"
	"github.com/cpritcha/catalog/internal/linkage"
	"github.com/cpritcha/catalog/internal/review"
)

// ProvideCrossrefClient provides the rate-limited CrossRef client.
func ProvideCrossrefClient(i do.Injector) (*crossref.Client, error) {
	global := do.MustInvoke[*config.GlobalConfig](i)

	opts := []crossref.ClientOption{crossref.WithRateLimit(global.RateLimit())}
	if global.CrossrefMailto != "" {
		opts = append(opts, crossref.WithMailto(global.CrossrefMailto))
	}
	return crossref.NewClient(opts...), nil
}

// ProvideIngestService provides the ingest service.
func ProvideIngestService(i do.Injector) (*ingest.Service, error) {
	store := do.MustInvoke[*StoreHandle](i)
	client := do.MustInvoke[*crossref.Client](i)
	m := do.MustInvoke[*MetricsHandle](i)
	log := do.MustInvoke[*zap.Logger](i)

	return ingest.NewService(store.DB, client, log.Named("ingest"), m.Metrics), nil
}

// ProvideLinkageService provides the author linkage service.
func ProvideLinkageService(i do.Injector) (*linkage.Service, error) {
	store := do.MustInvoke[*StoreHandle](i)
	m := do.MustInvoke[*MetricsHandle](i)
	log := do.MustInvoke[*zap.Logger](i)

	return linkage.NewService(store.DB, log.Named("linkage"), m.Metrics), nil
}

// ProvideReviewService provides the review workflow service.
func ProvideReviewService(i do.Injector) (*review.Service, error) {
	store := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*zap.Logger](i)

	return review.NewService(store.DB, log.Named("review")), nil
}
