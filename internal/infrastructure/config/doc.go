// Package config provides 12-factor configuration for the chat session client.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags override environment variables.
//
// Configuration Sections:
//   - Server: Chat backend base URL (its scheme picks ws or wss)
//   - Session: Connect/handshake timeouts, keepalive interval, frame size limit
//   - Reconnect: Exponential backoff base, cap and attempt budget
//   - REST: Conversation API timeout, retries and rate limit
//   - Logging: Log level and output format
//   - Metrics: Optional Prometheus listen address
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Connecting to %s\n", cfg.Server.BaseURL)
//
// Environment Variables:
//   - CHAT_BASE_URL, CHAT_CONNECT_TIMEOUT, CHAT_HANDSHAKE_TIMEOUT, CHAT_KEEPALIVE_INTERVAL
//   - RECONNECT_BASE_DELAY, RECONNECT_MAX_DELAY, RECONNECT_MAX_ATTEMPTS
//   - REST_TIMEOUT, REST_RETRY_MAX, REST_RATE_LIMIT_RPS
//   - LOG_LEVEL, LOG_DEV, METRICS_ADDR
package config
