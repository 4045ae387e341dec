package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/evalprd/evalprd-api/pkg/schema"
)

type sseEvent struct {
	Name string
	Data map[string]interface{}
}

func parseEvents(t *testing.T, raw string) []sseEvent {
	t.Helper()

	var events []sseEvent
	for _, block := range strings.Split(raw, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		event := sseEvent{}
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				event.Name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event.Data))
			}
		}
		events = append(events, event)
	}
	return events
}

func countTerminal(events []sseEvent) int {
	n := 0
	for _, ev := range events {
		if ev.Name == "done" || ev.Name == "error" {
			n++
		}
	}
	return n
}

// flakyWriter fails every write once the allowance is exhausted, standing in
// for a client that disconnected mid-stream.
type flakyWriter struct {
	buf      bytes.Buffer
	allowed  int
	writes   int
	attempts int
}

func (f *flakyWriter) Write(p []byte) (int, error) {
	f.attempts++
	if f.writes >= f.allowed {
		return 0, errors.New("broken pipe")
	}
	f.writes++
	return f.buf.Write(p)
}

func newTestRelay(heartbeat, timeout time.Duration) *Relay {
	return New(Config{
		HeartbeatInterval: heartbeat,
		Timeout:           timeout,
		Logger:            zerolog.Nop(),
	})
}

func TestRunStreamsDeltasAndEmitsSingleDone(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	chunks := []string{`{"a":1`, `,"b`, `":2}`}
	stream := func(ctx context.Context, onChunk func(string)) (json.RawMessage, error) {
		for _, chunk := range chunks {
			onChunk(chunk)
		}
		return json.RawMessage(`{"a":1,"b":2}`), nil
	}

	newTestRelay(time.Minute, time.Minute).Run(context.Background(), w, "corr-1", stream, nil)

	events := parseEvents(t, buf.String())
	require.Equal(t, "start", events[0].Name)

	var deltas []string
	for _, ev := range events {
		if ev.Name == "delta" {
			deltas = append(deltas, ev.Data["delta"].(string))
		}
	}
	require.Equal(t, chunks, deltas, "chunk order must be preserved")

	require.Equal(t, 1, countTerminal(events))
	last := events[len(events)-1]
	require.Equal(t, "done", last.Name)
	require.Equal(t, float64(1), last.Data["result"].(map[string]interface{})["a"])
}

func TestRunSchemaFailureEmitsErrorNotDone(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	stream := func(ctx context.Context, onChunk func(string)) (json.RawMessage, error) {
		onChunk(`{"a":1`)
		onChunk(`,"b":2}`)
		return json.RawMessage(`{"a":1,"b":2}`), nil
	}

	validate := func(json.RawMessage) error {
		return &schema.ValidationError{
			Schema: "binary_score",
			Issues: []schema.Issue{{Path: "/", Rule: "required", Message: "missing property 'c'"}},
		}
	}

	newTestRelay(time.Minute, time.Minute).Run(context.Background(), w, "corr-2", stream, validate)

	events := parseEvents(t, buf.String())
	require.Equal(t, 1, countTerminal(events))
	last := events[len(events)-1]
	require.Equal(t, "error", last.Name)
	require.Equal(t, "output validation failed", last.Data["error"])
	for _, ev := range events {
		require.NotEqual(t, "done", ev.Name)
	}
}

func TestRunUpstreamErrorEmitsError(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	stream := func(ctx context.Context, onChunk func(string)) (json.RawMessage, error) {
		return nil, errors.New("model provider rate limit exceeded")
	}

	newTestRelay(time.Minute, time.Minute).Run(context.Background(), w, "corr-3", stream, nil)

	events := parseEvents(t, buf.String())
	require.Equal(t, 1, countTerminal(events))
	require.Equal(t, "error", events[len(events)-1].Name)
}

func TestRunClientDisconnectSuppressesWrites(t *testing.T) {
	// Allow start plus two deltas, then the socket is dead.
	fw := &flakyWriter{allowed: 3}
	w := bufio.NewWriter(fw)

	delivered := make(chan struct{})
	stream := func(ctx context.Context, onChunk func(string)) (json.RawMessage, error) {
		for i := 0; i < 10; i++ {
			onChunk(`{"chunk":true}`)
		}
		close(delivered)
		return json.RawMessage(`{"tasks":[],"edges":[]}`), nil
	}

	require.NotPanics(t, func() {
		newTestRelay(time.Minute, time.Minute).Run(context.Background(), w, "corr-4", stream, nil)
	})

	select {
	case <-delivered:
	default:
		t.Fatal("upstream call should have drained to completion")
	}

	events := parseEvents(t, fw.buf.String())
	require.Equal(t, 0, countTerminal(events), "no terminal event reaches a closed socket")
	// One failing attempt latches the disconnect; nothing is written after it.
	require.LessOrEqual(t, fw.attempts, fw.allowed+1)
}

func TestRunHeartbeatsOnlyBeforeTerminal(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	stream := func(ctx context.Context, onChunk func(string)) (json.RawMessage, error) {
		time.Sleep(60 * time.Millisecond)
		return json.RawMessage(`{}`), nil
	}

	newTestRelay(10*time.Millisecond, time.Minute).Run(context.Background(), w, "corr-5", stream, nil)

	events := parseEvents(t, buf.String())
	heartbeats := 0
	sawTerminal := false
	for _, ev := range events {
		switch ev.Name {
		case "heartbeat":
			require.False(t, sawTerminal, "no heartbeat after the terminal event")
			heartbeats++
		case "done", "error":
			sawTerminal = true
		}
	}
	require.True(t, sawTerminal)
	require.GreaterOrEqual(t, heartbeats, 1)
}

func TestRunTimeoutBehavesLikeUpstreamError(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	stream := func(ctx context.Context, onChunk func(string)) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	newTestRelay(time.Minute, 30*time.Millisecond).Run(context.Background(), w, "corr-6", stream, nil)

	events := parseEvents(t, buf.String())
	require.Equal(t, 1, countTerminal(events))
	last := events[len(events)-1]
	require.Equal(t, "error", last.Name)
	require.Contains(t, last.Data["error"], "timed out")
}
