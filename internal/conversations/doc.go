// Package conversations is a typed client for the persisted conversation API.
//
// Sessions use it to load history when switching conversations; the CLI
// uses it to list and delete them. Requests go through resty over a
// retryablehttp transport and an optional token-bucket rate limiter.
package conversations
