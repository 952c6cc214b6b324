/*
Package monitoring provides Prometheus metrics for chat sessions.

# Overview

Collectors live on a private registry so several clients (and tests) can
coexist in one process. Every recording method is safe on a nil *Metrics,
which lets components treat metrics as optional.

# Metrics

- chat_sessions_active{feature}
- chat_status_transitions_total{feature,status}
- chat_frames_total{feature,direction,type}
- chat_protocol_errors_total{feature}
- chat_server_errors_total{feature}
- chat_reconnect_attempts_total{feature}
- chat_reconnect_giveups_total{feature}
- chat_connect_timeouts_total{feature}
- chat_rest_request_duration_seconds{operation,status}

# Usage

	metrics := monitoring.NewMetrics()
	metrics.RecordFrame("assistant", monitoring.DirectionInbound, "text")

	http.Handle("/metrics", metrics.Handler())
*/
package monitoring
