package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tetratelabs/wazero/api"
	"golang.org/x/time/rate"
)

const (
	// MaxLogSize is the maximum length of a single plugin log message.
	MaxLogSize = 256

	// LogRateLimit is the maximum number of log host calls per second.
	LogRateLimit = 10

	// RegexTimeout bounds a single regex operation requested by a plugin.
	RegexTimeout = 5 * time.Millisecond
)

// hostFunctions implements the "env" module exported to plugins.
type hostFunctions struct {
	cache       *regexCache
	logger      *slog.Logger
	rateLimiter *rate.Limiter
}

func newHostFunctions(logger *slog.Logger) *hostFunctions {
	return &hostFunctions{
		cache:       newRegexCache(DefaultRegexCacheSize),
		logger:      logger,
		rateLimiter: rate.NewLimiter(LogRateLimit, LogRateLimit),
	}
}

// regexMatch implements the regex_match host function.
// Signature: (str_ptr, str_len, re_ptr, re_len) -> i32.
// Returns 1 on match, 0 on no match or error.
func (h *hostFunctions) regexMatch(ctx context.Context, m api.Module, strPtr, strLen, rePtr, reLen uint32) uint32 {
	strBytes, ok := m.Memory().Read(strPtr, strLen)
	if !ok {
		return 0
	}
	str := string(strBytes)

	reBytes, ok := m.Memory().Read(rePtr, reLen)
	if !ok {
		return 0
	}
	pattern := string(reBytes)

	re, err := h.cache.Get(pattern)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("regex compilation failed",
				"pattern", pattern,
				"error", err)
		}
		return 0
	}

	// Go's regexp has no cancellation hook, so the match runs in its own
	// goroutine and the timeout only abandons the result. RE2 guarantees
	// linear time and MaxHostPatternLength caps pattern complexity, so an
	// abandoned goroutine finishes quickly on its own.
	ctx, cancel := context.WithTimeout(ctx, RegexTimeout)
	defer cancel()

	resultCh := make(chan bool, 1)
	go func() {
		resultCh <- re.MatchString(str)
	}()

	select {
	case matched := <-resultCh:
		if matched {
			return 1
		}
		return 0
	case <-ctx.Done():
		if h.logger != nil {
			h.logger.Warn("regex match timeout",
				"pattern", pattern,
				"str_len", len(str))
		}
		return 0
	}
}

// regexFindSubmatch implements the regex_find_submatch host function.
// Signature: (str_ptr, str_len, re_ptr, re_len, out_buf_ptr, out_buf_len) -> i32.
// Returns bytes written, 0 on no match or error, 0xFFFFFFFF if the output
// buffer is too small.
func (h *hostFunctions) regexFindSubmatch(ctx context.Context, m api.Module, strPtr, strLen, rePtr, reLen, outBufPtr, outBufLen uint32) uint32 {
	strBytes, ok := m.Memory().Read(strPtr, strLen)
	if !ok {
		return 0
	}
	str := string(strBytes)

	reBytes, ok := m.Memory().Read(rePtr, reLen)
	if !ok {
		return 0
	}
	pattern := string(reBytes)

	re, err := h.cache.Get(pattern)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("regex compilation failed",
				"pattern", pattern,
				"error", err)
		}
		return 0
	}

	// Same timeout behavior as regexMatch.
	ctx, cancel := context.WithTimeout(ctx, RegexTimeout)
	defer cancel()

	resultCh := make(chan []string, 1)
	go func() {
		resultCh <- re.FindStringSubmatch(str)
	}()

	var matches []string
	select {
	case matches = <-resultCh:
	case <-ctx.Done():
		if h.logger != nil {
			h.logger.Warn("regex find submatch timeout",
				"pattern", pattern,
				"str_len", len(str))
		}
		return 0
	}

	if matches == nil {
		return 0
	}

	jsonBytes, err := json.Marshal(matches)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal submatch results", "error", err)
		}
		return 0
	}

	if uint32(len(jsonBytes)) > outBufLen {
		return 0xFFFFFFFF
	}
	if !m.Memory().Write(outBufPtr, jsonBytes) {
		return 0
	}
	return uint32(len(jsonBytes))
}

// log implements the log host function.
// Signature: (level, ptr, len). Levels: 0=debug, 1=info, 2=warn, 3=error.
// Messages over the rate limit are dropped.
func (h *hostFunctions) log(ctx context.Context, m api.Module, level, ptr, msgLen uint32) {
	if !h.rateLimiter.Allow() {
		return
	}

	truncated := false
	if msgLen > MaxLogSize {
		truncated = true
		msgLen = MaxLogSize
	}

	msgBytes, ok := m.Memory().Read(ptr, msgLen)
	if !ok {
		return
	}

	msg := strings.ToValidUTF8(string(msgBytes), "�")
	if truncated {
		msg += " [truncated]"
	}

	if h.logger == nil {
		return
	}

	switch level {
	case 0:
		h.logger.Debug("[plugin] " + msg)
	case 1:
		h.logger.Info("[plugin] " + msg)
	case 2:
		h.logger.Warn("[plugin] " + msg)
	case 3:
		h.logger.Error("[plugin] " + msg)
	default:
		h.logger.Info(fmt.Sprintf("[plugin] (level=%d) %s", level, msg))
	}
}

// nowMs implements the now_ms host function.
// Signature: () -> i64, current Unix time in milliseconds.
func (h *hostFunctions) nowMs() int64 {
	return time.Now().UnixMilli()
}
