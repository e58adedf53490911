package lifegraph

import (
	"context"
	"fmt"
	"time"
)

// Connector retrieves data from one external source and emits Items.
// Implementations must be safe for use from a single sync task; the
// orchestrator never calls a connector concurrently with itself.
type Connector interface {
	// ID returns a stable, non-empty identifier for this connector
	// instance. It tags every item the connector produces and correlates
	// its sync checkpoints.
	ID() string

	// Init performs idempotent setup (authentication, connection
	// establishment). Called once before any sync call. A failure is
	// fatal to this connector's session but must not take down the run.
	Init(ctx context.Context) error

	// FullSync retrieves the complete current state of the source.
	FullSync(ctx context.Context) ([]*Item, error)

	// IncrementalSync retrieves items whose source-side change time is at
	// or after since. Connectors that cannot support partial sync may
	// return an empty result, but must document that limitation.
	IncrementalSync(ctx context.Context, since time.Time) ([]*Item, error)
}

// ConnectorError wraps a failure from a single connector. Always recoverable
// from the orchestrator's point of view: the connector's contribution
// degrades to empty for the current run.
type ConnectorError struct {
	ConnectorID string
	Op          string // "init", "full_sync", "incremental_sync"
	Err         error
}

func (e *ConnectorError) Error() string {
	return fmt.Sprintf("connector %s: %s: %v", e.ConnectorID, e.Op, e.Err)
}

func (e *ConnectorError) Unwrap() error { return e.Err }
