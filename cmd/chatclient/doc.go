// Package main is the terminal client for autocoder chat sessions.
//
// Each session command opens a realtime connection for one project and
// turns stdin lines into chat messages. Lines starting with a slash are
// commands (/help lists them).
//
// Usage:
//
//	# Ask the project assistant, resuming conversation 12
//	chatclient assistant my-app --conversation 12
//
//	# Add features to an existing project
//	chatclient expand my-app
//
//	# Review feature suggestions
//	chatclient features my-app
//
//	# Saved conversations
//	chatclient conversations list my-app
//	chatclient conversations delete my-app 12
//
// Configuration:
//   - Environment variables (CHAT_BASE_URL, LOG_LEVEL, RECONNECT_MAX_ATTEMPTS, ...)
//   - CLI flags (override env vars)
//
// Logs go to stderr so stdout only carries the conversation.
//
// Signals:
//   - SIGINT, SIGTERM: disconnect and exit
package main
