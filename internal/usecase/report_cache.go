package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/cashflow/internal/domain"
)

// Cache key namespaces.
const (
	NamespaceDaily     = "daily"
	NamespacePeriod    = "period"
	NamespaceSnapshot  = "snapshot"
	NamespacePersisted = "persisted"

	epochKey     = "report:epoch"
	defaultEpoch = "0"
)

// DailyKey is the cache key of the daily report of scope for day at the
// given daily version of that day.
func DailyKey(scope string, day time.Time, version string) string {
	return "report:" + NamespaceDaily + ":" + scope + ":" + domain.DayKey(day) + ":" + version
}

// PeriodKey is the cache key of a period report. epoch changes whenever a
// past day may have been rewritten.
func PeriodKey(scope string, p domain.Period, epoch string) string {
	return "report:" + NamespacePeriod + ":" + scope + ":" + domain.DayKey(p.Start) + ":" + domain.DayKey(p.End) + ":" + epoch
}

// SnapshotKey is the cache key of the reports produced by a daily consolidation run.
func SnapshotKey(day time.Time) string {
	return "report:" + NamespaceSnapshot + ":" + domain.DayKey(day)
}

// PersistedKey is the cache key of the stored reports of a day at the
// given persisted version of that day.
func PersistedKey(day time.Time, version string) string {
	return "report:" + NamespacePersisted + ":" + domain.DayKey(day) + ":" + version
}

func versionKey(namespace string, day time.Time) string {
	return "report:version:" + namespace + ":" + domain.DayKey(day)
}

func versionedKey(namespace string, day time.Time, version string) string {
	switch namespace {
	case NamespaceDaily:
		return DailyKey(domain.ScopeAll, day, version)
	case NamespacePersisted:
		return PersistedKey(day, version)
	}
	return ""
}

type nopObserver struct{}

func (nopObserver) CacheHit(string)   {}
func (nopObserver) CacheMiss(string)  {}
func (nopObserver) CacheError(string) {}

// ReportCache stores reports as JSON in a Cache. It is never a source of
// truth: backend failures are logged and treated as misses.
type ReportCache struct {
	cache    Cache
	log      zerolog.Logger
	observer CacheObserver
	seq      atomic.Uint64
}

// NewReportCache creates a ReportCache. observer may be nil.
func NewReportCache(cache Cache, log zerolog.Logger, observer CacheObserver) *ReportCache {
	if observer == nil {
		observer = nopObserver{}
	}
	return &ReportCache{
		cache:    cache,
		log:      log.With().Str("component", "report_cache").Logger(),
		observer: observer,
	}
}

// Get returns the report cached under key.
func (c *ReportCache) Get(ctx context.Context, namespace, key string) (domain.Report, bool) {
	var r domain.Report
	if !c.load(ctx, namespace, key, &r) {
		return domain.Report{}, false
	}
	return r, true
}

// Set caches r under key for ttl.
func (c *ReportCache) Set(ctx context.Context, key string, r domain.Report, ttl time.Duration) {
	c.store(ctx, key, r, ttl)
}

// GetReports returns the report list cached under key.
func (c *ReportCache) GetReports(ctx context.Context, namespace, key string) ([]domain.Report, bool) {
	var rs []domain.Report
	if !c.load(ctx, namespace, key, &rs) {
		return nil, false
	}
	return rs, true
}

// SetReports caches a report list under key for ttl.
func (c *ReportCache) SetReports(ctx context.Context, key string, rs []domain.Report, ttl time.Duration) {
	c.store(ctx, key, rs, ttl)
}

// Version returns the current version of namespace for day. Callers take
// the version before loading from the store and build their key from it, so
// a report computed from a load that raced with a write lands under a
// version no later reader asks for. ok is false when the backend cannot be
// read; nothing for day should be cached then.
func (c *ReportCache) Version(ctx context.Context, namespace string, day time.Time) (string, bool) {
	data, err := c.cache.Get(ctx, versionKey(namespace, day))
	if err == nil {
		return string(data), true
	}
	if errors.Is(err, ErrCacheMiss) {
		return defaultEpoch, true
	}
	c.observer.CacheError("get")
	c.log.Warn().Err(err).Str("namespace", namespace).Str("date", domain.DayKey(day)).Msg("cache version read failed, bypassing cache")
	return "", false
}

// Retire moves namespace to a new version for each of days, retiring every
// key built from the previous one. The all-scope key of the previous version
// is removed right away.
func (c *ReportCache) Retire(ctx context.Context, namespace string, days []time.Time, now time.Time) {
	for _, d := range days {
		prev, known := c.Version(ctx, namespace, d)
		if err := c.cache.Set(ctx, versionKey(namespace, d), []byte(c.token(now)), 0); err != nil {
			c.observer.CacheError("set")
			c.log.Warn().Err(err).Str("namespace", namespace).Str("date", domain.DayKey(d)).Msg("cache version bump failed")
			continue
		}
		if key := versionedKey(namespace, d, prev); known && key != "" {
			c.Invalidate(ctx, key)
		}
	}
}

// Invalidate removes key.
func (c *ReportCache) Invalidate(ctx context.Context, key string) {
	if err := c.cache.Delete(ctx, key); err != nil {
		c.observer.CacheError("delete")
		c.log.Warn().Err(err).Str("key", key).Msg("cache delete failed")
	}
}

// Epoch returns the current period-key epoch.
func (c *ReportCache) Epoch(ctx context.Context) string {
	data, err := c.cache.Get(ctx, epochKey)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.observer.CacheError("get")
			c.log.Warn().Err(err).Msg("cache epoch read failed")
		}
		return defaultEpoch
	}
	return string(data)
}

// BumpEpoch retires every cached period report.
func (c *ReportCache) BumpEpoch(ctx context.Context, now time.Time) {
	if err := c.cache.Set(ctx, epochKey, []byte(c.token(now)), 0); err != nil {
		c.observer.CacheError("set")
		c.log.Warn().Err(err).Msg("cache epoch bump failed")
	}
}

// token is unique per call even when now does not move.
func (c *ReportCache) token(now time.Time) string {
	return strconv.FormatInt(now.UnixNano(), 36) + "." + strconv.FormatUint(c.seq.Add(1), 36)
}

func (c *ReportCache) load(ctx context.Context, namespace, key string, v any) bool {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.observer.CacheError("get")
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		}
		c.observer.CacheMiss(namespace)
		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		c.observer.CacheError("decode")
		c.log.Warn().Err(err).Str("key", key).Msg("cached report is corrupt, treating as miss")
		c.observer.CacheMiss(namespace)
		return false
	}

	c.observer.CacheHit(namespace)
	return true
}

func (c *ReportCache) store(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.observer.CacheError("encode")
		c.log.Warn().Err(err).Str("key", key).Msg("report encode failed")
		return
	}
	if err := c.cache.Set(ctx, key, data, ttl); err != nil {
		c.observer.CacheError("set")
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
