package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artvault_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "artvault_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ReactionToggles counts like/save toggles by kind and resulting state.
	ReactionToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artvault_reaction_toggles_total",
		Help: "Total number of like and save toggles",
	}, []string{"kind", "result"})

	// CacheLookups counts cache-aside lookups by key family and outcome.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artvault_cache_lookups_total",
		Help: "Cache lookups by key family and outcome (hit, miss, error)",
	}, []string{"family", "outcome"})

	// ImageUploads counts processed uploads by stored format.
	ImageUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artvault_image_uploads_total",
		Help: "Total number of processed image uploads",
	}, []string{"format"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "artvault_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artvault_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artvault_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// RecordToggle counts one completed toggle.
func RecordToggle(kind string, active bool) {
	result := "removed"
	if active {
		result = "added"
	}
	ReactionToggles.WithLabelValues(kind, result).Inc()
}

const queryStartKey = "artvault:query_start"

// RegisterDatabaseMetrics installs GORM callbacks that observe query latency
// into DatabaseQueryLatency.
func RegisterDatabaseMetrics(db *gorm.DB) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(queryStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			table := tx.Statement.Table
			if table == "" {
				table = "raw"
			}
			DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
		}
	}

	cb := db.Callback()
	steps := []struct {
		op  string
		reg func(name string, fn func(*gorm.DB)) error
		aft func(name string, fn func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, s := range steps {
		if err := s.reg("metrics:before_"+s.op, before); err != nil {
			return err
		}
		if err := s.aft("metrics:after_"+s.op, after(s.op)); err != nil {
			return err
		}
	}
	return nil
}
