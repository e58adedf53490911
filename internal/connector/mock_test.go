package connector

import (
	"context"
	"testing"
	"time"

	"wkyt-go/internal/lifegraph"
)

func TestMockConnectorFullSync(t *testing.T) {
	c := NewMockConnector("mock-1", nil)

	if c.ID() != "mock-1" {
		t.Errorf("ID() = %q, want %q", c.ID(), "mock-1")
	}
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	items, err := c.FullSync(context.Background())
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}

	item := items[0]
	if item.SourceID != "mock_msg_1" {
		t.Errorf("SourceID = %q, want %q", item.SourceID, "mock_msg_1")
	}
	if item.ConnectorID != "mock-1" {
		t.Errorf("ConnectorID = %q, want %q", item.ConnectorID, "mock-1")
	}
	if item.Kind != lifegraph.KindMessage {
		t.Errorf("Kind = %v, want %v", item.Kind, lifegraph.KindMessage)
	}
	props, ok := item.Properties.(map[string]any)
	if !ok {
		t.Fatalf("Properties = %T, want map", item.Properties)
	}
	if props["subject"] != "Hello World" {
		t.Errorf("subject = %v, want %q", props["subject"], "Hello World")
	}
}

func TestMockConnectorIncrementalSyncIsEmpty(t *testing.T) {
	c := NewMockConnector("mock-1", nil)

	items, err := c.IncrementalSync(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("IncrementalSync() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len(items) = %d, want 0", len(items))
	}
}

func TestMockConnectorFreshIDsPerSync(t *testing.T) {
	c := NewMockConnector("mock-1", nil)

	first, _ := c.FullSync(context.Background())
	second, _ := c.FullSync(context.Background())
	if first[0].ID == second[0].ID {
		t.Errorf("two syncs produced the same item ID %q", first[0].ID)
	}
}
