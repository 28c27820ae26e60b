package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		service string
		level   string
		format  string
	}{
		{"json logger", "ironlayer", "info", "json"},
		{"text logger", "ironlayer", "debug", "text"},
		{"invalid level", "ironlayer", "invalid", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.service, tt.level, tt.format)
			if logger == nil {
				t.Fatal("New() returned nil")
			}
			if logger.service != tt.service {
				t.Errorf("service = %v, want %v", logger.service, tt.service)
			}
		})
	}
}

func TestLogger_WithContext(t *testing.T) {
	logger := New("ironlayer", "info", "json")
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-123")
	ctx = WithTenantID(ctx, "tenant-456")

	entry := logger.WithContext(ctx)
	if entry.Data["service"] != "ironlayer" {
		t.Errorf("service field = %v, want ironlayer", entry.Data["service"])
	}
	if entry.Data["trace_id"] != "trace-123" {
		t.Errorf("trace_id field = %v, want trace-123", entry.Data["trace_id"])
	}
	if entry.Data["tenant_id"] != "tenant-456" {
		t.Errorf("tenant_id field = %v, want tenant-456", entry.Data["tenant_id"])
	}
}

func TestLogger_WithFields(t *testing.T) {
	logger := New("ironlayer", "info", "json")
	entry := logger.WithFields(map[string]interface{}{"plan_id": "p1", "steps": 3})

	if entry.Data["plan_id"] != "p1" {
		t.Errorf("plan_id = %v, want p1", entry.Data["plan_id"])
	}
	if entry.Data["service"] != "ironlayer" {
		t.Errorf("service = %v, want ironlayer", entry.Data["service"])
	}
}

func TestLogger_WithError(t *testing.T) {
	logger := New("ironlayer", "info", "json")
	entry := logger.WithError(errors.New("boom"))

	if entry.Data["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry.Data["error"])
	}
}

func TestLogger_SetOutput(t *testing.T) {
	logger := New("ironlayer", "info", "json")
	buf := &bytes.Buffer{}
	logger.SetOutput(buf)
	logger.Logger.Info("test message")

	if buf.Len() == 0 {
		t.Error("SetOutput() did not redirect output")
	}
}

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()
	if id1 == "" || id1 == id2 {
		t.Error("NewTraceID() must return unique non-empty IDs")
	}
}

func TestWithAndGetTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-123")
	if got := GetTraceID(ctx); got != "trace-123" {
		t.Errorf("GetTraceID() = %v, want trace-123", got)
	}
	if got := GetTraceID(context.Background()); got != "" {
		t.Errorf("GetTraceID() on bare context = %v, want empty", got)
	}
}

func TestWithAndGetTenantID(t *testing.T) {
	ctx := WithTenantID(context.Background(), "tenant-456")
	if got := GetTenantID(ctx); got != "tenant-456" {
		t.Errorf("GetTenantID() = %v, want tenant-456", got)
	}
}
