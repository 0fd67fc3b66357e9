// Package logx provides structured logging for dealbot.
//
// It wraps zerolog behind a small Field/Logger API so the rest of the code
// does not import zerolog directly, and supports live sink reconfiguration
// (console, JSON file, rate-limited Telegram forwarding) via Service.Apply.
package logx
