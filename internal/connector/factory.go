package connector

import (
	"fmt"

	"wkyt-go/internal/config"
	"wkyt-go/internal/lifegraph"
)

// NewConnectorsFromConfig builds the connector set from config. Connectors
// are wired explicitly here; the core never discovers them dynamically.
func NewConnectorsFromConfig(cfgs []config.ConnectorConfig, logger lifegraph.Logger) ([]lifegraph.Connector, error) {
	connectors := make([]lifegraph.Connector, 0, len(cfgs))

	for _, cfg := range cfgs {
		if cfg.ID == "" {
			return nil, fmt.Errorf("connector of type %q has no id", cfg.Type)
		}

		switch cfg.Type {
		case "mock":
			connectors = append(connectors, NewMockConnector(cfg.ID, logger))
		case "google":
			return nil, fmt.Errorf("google connector not yet implemented")
		default:
			return nil, fmt.Errorf("unknown connector type: %s", cfg.Type)
		}
	}

	return connectors, nil
}
