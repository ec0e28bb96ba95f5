package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for query tracing
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include query variables in spans; keep off outside dev
	SlowQueryThresh time.Duration
}

// DefaultDBTracingConfig returns the default query tracing configuration
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:         false,
		LogFullSQL:      false,
		SlowQueryThresh: 200 * time.Millisecond,
	}
}

type contextKey string

const queryStartKey contextKey = "telemetry_query_start"

// DBTracingPlugin registers otelgorm on a GORM handle and flags slow
// queries on the resulting spans
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a query tracing plugin
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// Register installs otelgorm and the slow query callbacks. A disabled
// config registers nothing.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Query tracing disabled")
		return nil
	}

	opts := []otelgorm.Option{}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Query tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

// registerCallbacks hooks every GORM operation with a timing pair
func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	return firstErr(
		db.Callback().Create().Before("gorm:create").Register("telemetry:before_create", p.beforeQuery),
		db.Callback().Query().Before("gorm:query").Register("telemetry:before_query", p.beforeQuery),
		db.Callback().Update().Before("gorm:update").Register("telemetry:before_update", p.beforeQuery),
		db.Callback().Delete().Before("gorm:delete").Register("telemetry:before_delete", p.beforeQuery),
		db.Callback().Row().Before("gorm:row").Register("telemetry:before_row", p.beforeQuery),
		db.Callback().Raw().Before("gorm:raw").Register("telemetry:before_raw", p.beforeQuery),

		db.Callback().Create().After("gorm:create").Register("telemetry:after_create", p.afterQuery),
		db.Callback().Query().After("gorm:query").Register("telemetry:after_query", p.afterQuery),
		db.Callback().Update().After("gorm:update").Register("telemetry:after_update", p.afterQuery),
		db.Callback().Delete().After("gorm:delete").Register("telemetry:after_delete", p.afterQuery),
		db.Callback().Row().After("gorm:row").Register("telemetry:after_row", p.afterQuery),
		db.Callback().Raw().After("gorm:raw").Register("telemetry:after_raw", p.afterQuery),
	)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// beforeQuery stamps the statement context with the query start time
func (p *DBTracingPlugin) beforeQuery(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey, time.Now())
	}
}

// afterQuery annotates the otelgorm span with row counts, errors and slow
// query flags
func (p *DBTracingPlugin) afterQuery(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	// a missing row is an ordinary outcome, not a failure
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if start, ok := ctx.Value(queryStartKey).(time.Time); ok {
		elapsed := time.Since(start)
		if elapsed > p.config.SlowQueryThresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}
