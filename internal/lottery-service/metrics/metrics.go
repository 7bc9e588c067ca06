package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Lottery agrupa as métricas de negócio da rodada
type Lottery struct {
	ops       *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	payouts   prometheus.Counter
	fees      prometheus.Counter
	refunds   prometheus.Counter
	escrow    prometheus.Gauge
	settled   prometheus.Counter
	cancelled prometheus.Counter
}

// New registra as métricas no registerer informado (prometheus.DefaultRegisterer no main)
func New(reg prometheus.Registerer) *Lottery {
	m := &Lottery{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lottery_operations_total",
			Help: "operações na rodada por tipo e resultado",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lottery_operation_duration_ms",
			Help:    "duração das operações em milissegundos",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"op"}),
		payouts:   prometheus.NewCounter(prometheus.CounterOpts{Name: "lottery_payout_cents_total", Help: "total pago aos vencedores"}),
		fees:      prometheus.NewCounter(prometheus.CounterOpts{Name: "lottery_fee_cents_total", Help: "total de taxa do admin"}),
		refunds:   prometheus.NewCounter(prometheus.CounterOpts{Name: "lottery_refund_cents_total", Help: "total reembolsado em cancelamentos"}),
		escrow:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "lottery_escrow_balance_cents", Help: "saldo em custódia da rodada aberta"}),
		settled:   prometheus.NewCounter(prometheus.CounterOpts{Name: "lottery_rounds_settled_total", Help: "rodadas liquidadas"}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{Name: "lottery_rounds_cancelled_total", Help: "rodadas canceladas"}),
	}
	reg.MustRegister(m.ops, m.duration, m.payouts, m.fees, m.refunds, m.escrow, m.settled, m.cancelled)
	return m
}

// RecordOp conta a operação; result é "success" ou o tipo do erro
func (m *Lottery) RecordOp(op, result string, started time.Time) {
	m.ops.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(float64(time.Since(started).Milliseconds()))
}

// RecordSettlement soma prêmio e taxa de uma rodada liquidada
func (m *Lottery) RecordSettlement(payout, fee int64) {
	m.settled.Inc()
	m.payouts.Add(float64(payout))
	m.fees.Add(float64(fee))
}

// RecordCancellation soma os reembolsos de uma rodada cancelada
func (m *Lottery) RecordCancellation(refunded int64) {
	m.cancelled.Inc()
	m.refunds.Add(float64(refunded))
}

func (m *Lottery) SetEscrow(balance int64) { m.escrow.Set(float64(balance)) }
