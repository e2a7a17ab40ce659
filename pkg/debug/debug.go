// Package debug sets up the process logger and gates verbose output by
// subsystem.
//
// Verbosity has two independent knobs. A category list selects which
// subsystems emit debug lines (FEYNMIND_DEBUG=auth,tutor or
// logging.debug). The level selects how much reaches the handler
// (FEYNMIND_LOG_LEVEL or logging.level): ERROR, WARN, INFO, DEBUG, TRACE.
// TRACE adds full prompts and backend bodies for enabled categories.
//
//	debug.Log("store", "identity saved", "email", email)
//	debug.Trace("tutor", "backend body", "body", raw)
//
// Passwords, hashes and tokens must never be passed to either function.
package debug

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// LevelTrace sits below slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

// Known lists the categories the server logs under. "all" enables every one.
var Known = []string{"auth", "store", "documents", "tutor", "transport", "config"}

// enabled is written by Init at startup and only read afterwards.
var enabled = parseCategories(os.Getenv("FEYNMIND_DEBUG"))

// Init installs the default slog handler writing to stderr and selects the
// debug categories. FEYNMIND_DEBUG and FEYNMIND_LOG_LEVEL win over the
// configured values. format "json" selects the JSON handler, anything else
// text.
func Init(configCategories, configLevel, format string) {
	cats := firstNonEmpty(os.Getenv("FEYNMIND_DEBUG"), configCategories)
	level := firstNonEmpty(os.Getenv("FEYNMIND_LOG_LEVEL"), configLevel, "INFO")

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))

	enabled = parseCategories(cats)
	if unknown := unknownCategories(enabled); len(unknown) > 0 {
		slog.Warn("ignoring unknown debug categories", "categories", unknown, "known", Known)
	}
}

// Enabled reports whether category emits debug output.
func Enabled(category string) bool {
	return enabled["all"] || enabled[category]
}

// Log writes a DEBUG record tagged with category when it is enabled.
func Log(category, msg string, args ...any) {
	if Enabled(category) {
		slog.Debug(msg, append([]any{"debug", category}, args...)...)
	}
}

// Trace writes a TRACE record tagged with category when it is enabled.
func Trace(category, msg string, args ...any) {
	if Enabled(category) {
		slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
	}
}

// ParseLevel maps a level name to a slog.Level. Unknown names yield INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Truncate shortens s to maxLen runes and marks the cut with "...".
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		if cat = strings.ToLower(strings.TrimSpace(cat)); cat != "" {
			m[cat] = true
		}
	}
	return m
}

func unknownCategories(m map[string]bool) []string {
	var out []string
	for cat := range m {
		if cat != "all" && !slices.Contains(Known, cat) {
			out = append(out, cat)
		}
	}
	slices.Sort(out)
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
