package testutil

import (
	"context"
	"sync"
	"time"

	"wkyt-go/internal/lifegraph"
)

// StubConnector is a configurable connector for service tests. Zero value is a
// connector that succeeds and returns no items. Safe for concurrent use.
type StubConnector struct {
	ConnectorID string
	Items       []*lifegraph.Item // returned by both sync methods
	InitErr     error
	SyncErr     error

	mu               sync.Mutex
	initCalls        int
	fullSyncCalls    int
	incrementalCalls int
	lastSince        time.Time
}

var _ lifegraph.Connector = (*StubConnector)(nil)

func (c *StubConnector) ID() string {
	return c.ConnectorID
}

func (c *StubConnector) Init(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initCalls++
	return c.InitErr
}

func (c *StubConnector) FullSync(_ context.Context) ([]*lifegraph.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fullSyncCalls++
	if c.SyncErr != nil {
		return nil, c.SyncErr
	}
	return c.Items, nil
}

func (c *StubConnector) IncrementalSync(_ context.Context, since time.Time) ([]*lifegraph.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incrementalCalls++
	c.lastSince = since
	if c.SyncErr != nil {
		return nil, c.SyncErr
	}
	return c.Items, nil
}

// FullSyncCalls returns how many times FullSync has been invoked.
func (c *StubConnector) FullSyncCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fullSyncCalls
}

// IncrementalSyncCalls returns how many times IncrementalSync has been invoked.
func (c *StubConnector) IncrementalSyncCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.incrementalCalls
}

// LastSince returns the since value of the most recent IncrementalSync call.
func (c *StubConnector) LastSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSince
}
