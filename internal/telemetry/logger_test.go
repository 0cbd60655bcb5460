package telemetry

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLogLevel(in), "input %q", in)
	}
}

func TestPrettyHandlerFormatsLevelAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelInfo)
	t.Cleanup(func() { InitWriter(&bytes.Buffer{}, slog.LevelInfo) })

	Debugf("hidden %d", 1)
	Warnf("channel %s dropped", "/lobbyhub")
	L().With("room", "lobby").Info("joined", "attempt", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN: channel /lobbyhub dropped")
	assert.Contains(t, out, "joined room=lobby attempt=2")
}

func TestLatencyTrackerPercentiles(t *testing.T) {
	lt := NewLatencyTracker(3)
	assert.Zero(t, lt.P50())
	for _, ms := range []int{40, 10, 30, 20} {
		lt.Record(time.Duration(ms) * time.Millisecond)
	}
	assert.Equal(t, 3, lt.Count())
	assert.Equal(t, 20*time.Millisecond, lt.P50())
	assert.Equal(t, 20*time.Millisecond, lt.P99()) // idx = int(2*0.99) = 1
}
