// Package ftpmetrics exports FTP session metrics to Prometheus.
//
// Example:
//
//	collector := ftpmetrics.New("myapp")
//	prometheus.MustRegister(collector)
//
//	s, _ := ftp.New(ftp.WithMetrics(collector))
package ftpmetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements ftp.MetricsCollector and prometheus.Collector.
type Collector struct {
	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	transferBytes   *prometheus.CounterVec
	transferSeconds *prometheus.HistogramVec
	connections     *prometheus.CounterVec
}

// New creates a collector whose metric names start with namespace.
func New(namespace string) *Collector {
	return &Collector{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ftp_client",
			Name:      "commands_total",
			Help:      "FTP commands sent, by command, reply code and outcome.",
		}, []string{"command", "code", "success"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ftp_client",
			Name:      "command_duration_seconds",
			Help:      "Time from sending an FTP command to claiming its reply.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		transferBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ftp_client",
			Name:      "transfer_bytes_total",
			Help:      "Bytes moved by completed transfers.",
		}, []string{"operation"}),
		transferSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ftp_client",
			Name:      "transfer_duration_seconds",
			Help:      "Duration of completed transfers.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"operation"}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ftp_client",
			Name:      "connections_total",
			Help:      "Connect attempts, by outcome.",
		}, []string{"success", "reason"}),
	}
}

// RecordCommand implements ftp.MetricsCollector.
func (c *Collector) RecordCommand(cmd string, code int, success bool, duration time.Duration) {
	c.commands.WithLabelValues(cmd, strconv.Itoa(code), strconv.FormatBool(success)).Inc()
	c.commandDuration.WithLabelValues(cmd).Observe(duration.Seconds())
}

// RecordTransfer implements ftp.MetricsCollector.
func (c *Collector) RecordTransfer(operation string, bytes int64, duration time.Duration) {
	c.transferBytes.WithLabelValues(operation).Add(float64(bytes))
	c.transferSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordConnection implements ftp.MetricsCollector.
func (c *Collector) RecordConnection(success bool, reason string) {
	c.connections.WithLabelValues(strconv.FormatBool(success), reason).Inc()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.commands.Describe(ch)
	c.commandDuration.Describe(ch)
	c.transferBytes.Describe(ch)
	c.transferSeconds.Describe(ch)
	c.connections.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.commands.Collect(ch)
	c.commandDuration.Collect(ch)
	c.transferBytes.Collect(ch)
	c.transferSeconds.Collect(ch)
	c.connections.Collect(ch)
}
