package ftp

import "time"

// MetricsCollector is an optional interface for collecting client metrics.
// Implementations can send metrics to monitoring systems like Prometheus,
// StatsD, DataDog, etc. The ftpmetrics package provides a Prometheus
// implementation.
//
// Methods are called on the goroutine issuing the command and should not
// block.
type MetricsCollector interface {
	// RecordCommand records one command/reply exchange.
	// cmd is the command name (e.g., "USER", "RETR").
	// code is the reply code, or 0 if no reply was parsed.
	// success is false for 4xx/5xx replies and for I/O failures.
	RecordCommand(cmd string, code int, success bool, duration time.Duration)

	// RecordTransfer records a completed file transfer.
	// operation is either "RETR" (download) or "STOR" (upload).
	RecordTransfer(operation string, bytes int64, duration time.Duration)

	// RecordConnection records the outcome of Connect.
	// reason is "connected", "dial_failed", "greeting_rejected" or
	// "login_rejected".
	RecordConnection(success bool, reason string)
}
