package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestTracingFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "spans.txt")

	if err := Init("bluish", "0.0.1", fname); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "workflow")
	span.WithAttributes(map[string]string{"workflow.name": "test"})
	_, child := StartSpan(ctx, "job")
	EndSpan(child, nil)
	EndSpan(span, nil)

	data, err := os.ReadFile(fname)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("no data written to trace file")
	}
}

func TestInitWithExporter_Nil(t *testing.T) {
	if err := InitWithExporter("bluish", "0.0.1", nil); err != nil {
		t.Fatalf("nil exporter should be a no-op, got %v", err)
	}
}
