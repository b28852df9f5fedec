package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolDesc builds a pool metric descriptor labeled by service so the cart,
// checkout and inventory pools share one metric family.
func poolDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(name, help, []string{"service"}, nil)
}

var (
	descAcquiredConns      = poolDesc("db_pool_acquired_connections", "Connections currently checked out of the pool")
	descIdleConns          = poolDesc("db_pool_idle_connections", "Connections sitting idle in the pool")
	descTotalConns         = poolDesc("db_pool_total_connections", "Connections currently held by the pool")
	descMaxConns           = poolDesc("db_pool_max_connections", "Configured pool connection ceiling")
	descConstructingConns  = poolDesc("db_pool_constructing_connections", "Connections currently being opened")
	descAcquireCount       = poolDesc("db_pool_acquire_count_total", "Connection acquires since start")
	descAcquireDuration    = poolDesc("db_pool_acquire_duration_seconds_total", "Cumulative time spent waiting on acquires")
	descCanceledAcquires   = poolDesc("db_pool_canceled_acquire_count_total", "Acquires canceled before a connection was handed out")
	descEmptyAcquires      = poolDesc("db_pool_empty_acquire_count_total", "Acquires that had to wait for a free connection")
	descNewConnsCount      = poolDesc("db_pool_new_connections_total", "Connections opened since start")
	descMaxLifetimeDestroy = poolDesc("db_pool_max_lifetime_destroy_total", "Connections closed for exceeding max lifetime")
	descMaxIdleDestroy     = poolDesc("db_pool_max_idle_destroy_total", "Connections closed for exceeding max idle time")
)

// PoolStatsCollector exports pgxpool statistics as prometheus metrics.
type PoolStatsCollector struct {
	pool    *pgxpool.Pool
	service string
}

// NewPoolStatsCollector creates a collector over the given pool, labeling
// every metric with the owning service name.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	return &PoolStatsCollector{pool: pool, service: service}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descAcquiredConns
	ch <- descIdleConns
	ch <- descTotalConns
	ch <- descMaxConns
	ch <- descConstructingConns
	ch <- descAcquireCount
	ch <- descAcquireDuration
	ch <- descCanceledAcquires
	ch <- descEmptyAcquires
	ch <- descNewConnsCount
	ch <- descMaxLifetimeDestroy
	ch <- descMaxIdleDestroy
}

// Collect implements prometheus.Collector by snapshotting the pool stats.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()

	gauge := func(desc *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, c.service)
	}
	counter := func(desc *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, v, c.service)
	}

	gauge(descAcquiredConns, float64(stat.AcquiredConns()))
	gauge(descIdleConns, float64(stat.IdleConns()))
	gauge(descTotalConns, float64(stat.TotalConns()))
	gauge(descMaxConns, float64(stat.MaxConns()))
	gauge(descConstructingConns, float64(stat.ConstructingConns()))
	counter(descAcquireCount, float64(stat.AcquireCount()))
	counter(descAcquireDuration, stat.AcquireDuration().Seconds())
	counter(descCanceledAcquires, float64(stat.CanceledAcquireCount()))
	counter(descEmptyAcquires, float64(stat.EmptyAcquireCount()))
	counter(descNewConnsCount, float64(stat.NewConnsCount()))
	counter(descMaxLifetimeDestroy, float64(stat.MaxLifetimeDestroyCount()))
	counter(descMaxIdleDestroy, float64(stat.MaxIdleDestroyCount()))
}

// RegisterPoolMetrics registers a pool collector with the default registry.
func RegisterPoolMetrics(pool *pgxpool.Pool, service string) {
	prometheus.MustRegister(NewPoolStatsCollector(pool, service))
}
