package connector

import (
	"context"
	"time"

	"wkyt-go/internal/lifegraph"
)

// MockConnector is a test double for the Connector contract. FullSync emits a
// single fixed synthetic message; IncrementalSync emits nothing. It exists to
// validate the ingestion pipeline end to end without a live source.
type MockConnector struct {
	ConnectorID string
	Logger      lifegraph.Logger
}

// NewMockConnector creates a MockConnector with the given instance ID.
func NewMockConnector(id string, logger lifegraph.Logger) *MockConnector {
	if logger == nil {
		logger = lifegraph.NewNopLogger()
	}
	return &MockConnector{ConnectorID: id, Logger: logger}
}

func (c *MockConnector) ID() string { return c.ConnectorID }

func (c *MockConnector) Init(ctx context.Context) error {
	c.Logger.Debug("mock connector initialized", "connector", c.ConnectorID)
	return nil
}

func (c *MockConnector) FullSync(ctx context.Context) ([]*lifegraph.Item, error) {
	item := lifegraph.NewItem(
		"mock_msg_1",
		c.ConnectorID,
		lifegraph.KindMessage,
		map[string]any{
			"subject": "Hello World",
			"body":    "This is a test message from the mock connector.",
		},
	)
	return []*lifegraph.Item{item}, nil
}

func (c *MockConnector) IncrementalSync(ctx context.Context, since time.Time) ([]*lifegraph.Item, error) {
	return []*lifegraph.Item{}, nil
}

// Compile-time check that MockConnector implements lifegraph.Connector
var _ lifegraph.Connector = (*MockConnector)(nil)
