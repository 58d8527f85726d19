package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Count of live quotes received"},
		[]string{"symbol"},
	)
	CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "cycles_total", Help: "Decision cycles completed"},
	)
	CycleErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "cycle_errors_total", Help: "Cycles aborted by a recovered error"},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "decisions_total", Help: "Final decisions by action"},
		[]string{"action"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"symbol", "side"},
	)
	OrderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_retries_total", Help: "Order retry attempts by recovery kind"},
		[]string{"kind"},
	)
	OracleCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "oracle_calls_total", Help: "Advisory oracle calls by role and outcome"},
		[]string{"role", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal, CyclesTotal, CycleErrorsTotal,
		DecisionsTotal, OrdersTotal, OrderRetriesTotal, OracleCallsTotal,
	)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
