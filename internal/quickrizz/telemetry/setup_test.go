package telemetry_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/bdobrica/quickrizz/internal/quickrizz/telemetry"
)

func TestSetup_Disabled(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := telemetry.Setup("quickrizz", "test", 0, &buf)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("disabled telemetry wrote %q", buf.String())
	}
}

func TestSetup_ExportsOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := telemetry.Setup("quickrizz", "test", time.Hour, &buf)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	counter, err := otel.Meter("telemetry_test").Int64Counter("quickrizz.test.events")
	if err != nil {
		t.Fatalf("Int64Counter: %v", err)
	}
	counter.Add(context.Background(), 3)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"quickrizz.test.events", "service.name"} {
		if !strings.Contains(out, want) {
			t.Errorf("exported metrics missing %q:\n%s", want, out)
		}
	}
}
