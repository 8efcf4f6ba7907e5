package store

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// RegisterMetrics exposes pgxpool connection stats (open/idle/in-use
// connections, wait counts) to Prometheus under subsystem, the same
// database/sql bridge the teacher's processor-svc uses to observe its
// pool.
func RegisterMetrics(db *pgxpool.Pool, subsystem string) (*sql.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(db)
	prometheus.MustRegister(collectors.NewDBStatsCollector(sqlDB, subsystem))
	return sqlDB, nil
}
