package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/ARRNAV26/Voting-System/internal/adapter/metrics"
	"github.com/jackc/pgx/v5"
)

const driverName = "postgres"

// MetricsTracer records the duration and failures of every pgx query.
type MetricsTracer struct {
	metrics *metrics.StorageMetrics
	now     func() time.Time
}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

func NewMetricsTracer(m *metrics.StorageMetrics) *MetricsTracer {
	return &MetricsTracer{metrics: m, now: time.Now}
}

type queryContextKey struct{}

type queryContext struct {
	startTime time.Time
	queryName string
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryContextKey{}, queryContext{
		startTime: t.now(),
		queryName: extractQueryName(data.SQL),
	})
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qctx, ok := ctx.Value(queryContextKey{}).(queryContext)
	if !ok {
		return
	}
	t.metrics.Observe(driverName, qctx.queryName, t.now().Sub(qctx.startTime), data.Err)
}

// extractQueryName returns the lower-cased leading SQL keyword, keeping the
// label set small.
func extractQueryName(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	name := strings.ToLower(fields[0])
	if len(name) > 20 {
		name = name[:20]
	}
	return name
}
