package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"growattgateway/pkg/protocol/growatt"
	modbusruntime "growattgateway/pkg/protocol/modbus/runtime"
)

const namespace = "growatt"

type Sample struct {
	Instance string
	Stats    modbusruntime.Stats
	Entities []*growatt.EntityState
}

// Source supplies the current state of every inverter at scrape time.
type Source interface {
	Samples() []Sample
}

var _ prometheus.Collector = (*Collector)(nil)

type Collector struct {
	source Source

	entityValue *prometheus.Desc
	connected   *prometheus.Desc
	reads       *prometheus.Desc
	failures    *prometheus.Desc
	connects    *prometheus.Desc
}

func NewCollector(source Source) *Collector {
	return &Collector{
		source: source,
		entityValue: prometheus.NewDesc(prometheus.BuildFQName(namespace, "entity", "value"),
			"Last decoded value of a numeric entity.",
			[]string{"instance", "entity", "name", "unit"}, nil),
		connected: prometheus.NewDesc(prometheus.BuildFQName(namespace, "modbus", "connected"),
			"Whether the modbus connection is currently up.",
			[]string{"instance"}, nil),
		reads: prometheus.NewDesc(prometheus.BuildFQName(namespace, "modbus", "reads_total"),
			"Register read transactions attempted.",
			[]string{"instance"}, nil),
		failures: prometheus.NewDesc(prometheus.BuildFQName(namespace, "modbus", "failures_total"),
			"Register reads that returned no data.",
			[]string{"instance"}, nil),
		connects: prometheus.NewDesc(prometheus.BuildFQName(namespace, "modbus", "connects_total"),
			"Successful modbus connects.",
			[]string{"instance"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entityValue
	ch <- c.connected
	ch <- c.reads
	ch <- c.failures
	ch <- c.connects
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.source.Samples() {
		connected := 0.0
		if s.Stats.Connected {
			connected = 1
		}
		ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, connected, s.Instance)
		ch <- prometheus.MustNewConstMetric(c.reads, prometheus.CounterValue, float64(s.Stats.Reads), s.Instance)
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(s.Stats.Failures), s.Instance)
		ch <- prometheus.MustNewConstMetric(c.connects, prometheus.CounterValue, float64(s.Stats.Connects), s.Instance)

		for _, e := range s.Entities {
			v, ok := ToFloat64(e.Value)
			if !ok {
				continue
			}
			ch <- prometheus.MustNewConstMetric(c.entityValue, prometheus.GaugeValue, v, s.Instance, e.ID, e.Name, e.Unit)
		}
	}
}

// ToFloat64 converts decoded entity values, text values are not numeric.
func ToFloat64(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case uint16:
		return float64(t), true
	default:
		return 0, false
	}
}

func NewRegistry(source Source) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(source),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
