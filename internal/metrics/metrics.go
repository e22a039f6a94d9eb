package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Count of market ticks ingested"},
		[]string{"symbol"},
	)
	SignalsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_applied_total", Help: "Bridge signals applied by the executor"},
		[]string{"symbol", "direction"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted to the broker"},
		[]string{"symbol", "side"},
	)
	OrderRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_retries_total", Help: "Order resubmissions after recoverable broker errors"},
		[]string{"symbol", "op"},
	)
	TradeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trade_errors_total", Help: "Broker errors by classification"},
		[]string{"symbol", "class"},
	)
	TrailingAdjustments = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trailing_adjustments_total", Help: "Stop-loss tightenings by the trailing logic"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, SignalsApplied, OrdersTotal, OrderRetries, TradeErrors, TrailingAdjustments)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
