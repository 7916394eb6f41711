package integration

import (
	"context"
	"testing"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
)

func TestRoutingKey(t *testing.T) {
	tests := []struct {
		base string
		typ  models.FileEventType
		want string
	}{
		{"file.events", models.EventFileCompleted, "file.events.file.completed"},
		{"file.events", models.EventFileRemoved, "file.events.file.deleted"},
		{"", models.EventFileFailed, "file.failed"},
	}

	for _, tt := range tests {
		if got := RoutingKey(tt.base, tt.typ); got != tt.want {
			t.Errorf("RoutingKey(%q, %q) = %q, want %q", tt.base, tt.typ, got, tt.want)
		}
	}
}

func TestNoopPublisher(t *testing.T) {
	p := NewNoopPublisher()
	if err := p.PublishFileEvent(context.Background(), &models.FileEvent{Type: models.EventFileCompleted}); err != nil {
		t.Fatalf("noop publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("noop close: %v", err)
	}
}
