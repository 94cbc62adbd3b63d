package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestResolvePrefersContextLogger(t *testing.T) {
	t.Parallel()

	var scoped, fallback bytes.Buffer
	ctx := ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&scoped, nil)))

	Resolve(ctx, slog.New(slog.NewTextHandler(&fallback, nil))).Info("hello")

	if !strings.Contains(scoped.String(), "hello") || fallback.Len() != 0 {
		t.Fatalf("expected the context logger to be used, scoped=%q fallback=%q", scoped.String(), fallback.String())
	}
}

func TestResolveFallsBack(t *testing.T) {
	t.Parallel()

	var fallback bytes.Buffer
	Resolve(context.Background(), slog.New(slog.NewTextHandler(&fallback, nil))).Info("hello")
	if !strings.Contains(fallback.String(), "hello") {
		t.Fatalf("expected fallback output, got %q", fallback.String())
	}
	if Resolve(context.Background(), nil) == nil {
		t.Fatalf("expected slog.Default when nothing is configured")
	}
}

func TestContextWithLoggerIgnoresNil(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := ContextWithLogger(ctx, nil); got != ctx {
		t.Fatalf("expected the original context")
	}
	if FromContext(ctx) != nil {
		t.Fatalf("expected no logger")
	}
}

func TestComponentAttributes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		operation string
		want      []string
		reject    string
	}{
		{name: "with operation", operation: "CreateEvent", want: []string{"service=EventService", "operation=CreateEvent", "event_id=e-1"}},
		{name: "without operation", want: []string{"service=EventService", "event_id=e-1"}, reject: "operation="},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			base := slog.New(slog.NewTextHandler(&buf, nil))
			Component(context.Background(), base, "service", "EventService", tc.operation, "event_id", "e-1").Info("done")

			line := buf.String()
			for _, want := range tc.want {
				if !strings.Contains(line, want) {
					t.Fatalf("expected %q in %q", want, line)
				}
			}
			if tc.reject != "" && strings.Contains(line, tc.reject) {
				t.Fatalf("did not expect %q in %q", tc.reject, line)
			}
		})
	}
}
