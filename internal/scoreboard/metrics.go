package scoreboard

import "github.com/prometheus/client_golang/prometheus"

// metricsNamespace はサービス固有メトリクスの名前空間。
const metricsNamespace = "scoreboard"

// serviceMetrics はスコアボード固有のメトリクス。
type serviceMetrics struct {
	// scoresCreated は登録に成功したスコアの件数。
	scoresCreated prometheus.Counter
	// requestFailures は種別ごとのエラーレスポンス件数。
	requestFailures *prometheus.CounterVec
}

func newServiceMetrics(reg prometheus.Registerer) *serviceMetrics {
	m := &serviceMetrics{
		scoresCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "scores_created_total",
			Help:      "Total number of scores submitted successfully.",
		}),
		requestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "request_failures_total",
			Help:      "Total failed score requests by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.scoresCreated, m.requestFailures)
	return m
}
