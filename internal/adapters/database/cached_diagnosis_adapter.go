package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/providers"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

const diagnosisCacheName = "diagnoses"

// CachedDiagnosisAdapter wraps a DiagnosisRepository with caching. ICD codes
// change rarely so entries live for the configured TTL.
type CachedDiagnosisAdapter struct {
	adapter repositories.DiagnosisRepository
	cache   providers.CacheProvider
	ttl     int
	metrics *observability.Metrics
	logger  zerolog.Logger
}

var _ repositories.DiagnosisRepository = (*CachedDiagnosisAdapter)(nil)

// NewCachedDiagnosisAdapter creates a new cached diagnosis adapter
func NewCachedDiagnosisAdapter(
	adapter repositories.DiagnosisRepository,
	cache providers.CacheProvider,
	ttl time.Duration,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *CachedDiagnosisAdapter {
	seconds := int(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return &CachedDiagnosisAdapter{
		adapter: adapter,
		cache:   cache,
		ttl:     seconds,
		metrics: metrics,
		logger:  logger,
	}
}

func diagnosesListCacheKey(filter entities.DiagnosisFilter) string {
	asOf := "current"
	if filter.AsOf != nil {
		asOf = filter.AsOf.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("diagnoses:list:%s:%s", asOf, filter.Search)
}

func diagnosisCacheKey(code string) string {
	return fmt.Sprintf("diagnosis:%s", code)
}

// List returns the matching diagnoses, from cache when possible
func (a *CachedDiagnosisAdapter) List(ctx context.Context, filter entities.DiagnosisFilter) ([]*entities.Diagnosis, error) {
	key := diagnosesListCacheKey(filter)

	var diagnoses []*entities.Diagnosis
	if a.lookup(ctx, key, &diagnoses) {
		return diagnoses, nil
	}

	diagnoses, err := a.adapter.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	a.store(ctx, key, diagnoses)
	return diagnoses, nil
}

// GetByCode returns the current diagnosis with code, from cache when possible
func (a *CachedDiagnosisAdapter) GetByCode(ctx context.Context, code string) (*entities.Diagnosis, error) {
	key := diagnosisCacheKey(code)

	var diagnosis entities.Diagnosis
	if a.lookup(ctx, key, &diagnosis) {
		return &diagnosis, nil
	}

	d, err := a.adapter.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	a.store(ctx, key, d)
	return d, nil
}

// Invalidate drops every cached diagnosis entry
func (a *CachedDiagnosisAdapter) Invalidate(ctx context.Context) error {
	if err := a.cache.DeletePattern(ctx, "diagnoses:*"); err != nil {
		return err
	}
	return a.cache.DeletePattern(ctx, "diagnosis:*")
}

func (a *CachedDiagnosisAdapter) lookup(ctx context.Context, key string, dest interface{}) bool {
	data, err := a.cache.Get(ctx, key)
	if err != nil {
		observability.RecordCacheMiss(ctx, a.metrics, diagnosisCacheName)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("failed to unmarshal cached diagnoses")
		observability.RecordCacheMiss(ctx, a.metrics, diagnosisCacheName)
		return false
	}
	observability.RecordCacheHit(ctx, a.metrics, diagnosisCacheName)
	return true
}

func (a *CachedDiagnosisAdapter) store(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("failed to marshal diagnoses for cache")
		return
	}
	if err := a.cache.Set(ctx, key, data, a.ttl); err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("failed to cache diagnoses")
	}
}
