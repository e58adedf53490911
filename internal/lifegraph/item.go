package lifegraph

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ItemKind classifies an Item within the vault ontology. The known kinds are
// a closed set; unmodeled kinds are carried as Other with an arbitrary tag so
// connectors can emit data the core doesn't understand yet.
//
// The JSON encoding matches the wire format connectors and the storage layer
// agree on: known kinds are bare snake_case strings ("person", "message"),
// Other encodes as {"other": "<tag>"}.
type ItemKind struct {
	name string
	tag  string // set only when name == otherName
}

const otherName = "other"

var (
	KindPerson       = ItemKind{name: "person"}
	KindOrganization = ItemKind{name: "organization"}
	KindTransaction  = ItemKind{name: "transaction"}
	KindMessage      = ItemKind{name: "message"}
	KindFile         = ItemKind{name: "file"}
	KindMetric       = ItemKind{name: "metric"}
	KindEvent        = ItemKind{name: "event"}
)

// knownKinds maps the encoded name of every closed-set kind.
var knownKinds = map[string]ItemKind{
	"person":       KindPerson,
	"organization": KindOrganization,
	"transaction":  KindTransaction,
	"message":      KindMessage,
	"metric":       KindMetric,
	"file":         KindFile,
	"event":        KindEvent,
}

// OtherKind returns an open-variant kind carrying the given tag.
func OtherKind(tag string) ItemKind {
	return ItemKind{name: otherName, tag: tag}
}

// IsOther reports whether k is the open Other variant.
func (k ItemKind) IsOther() bool { return k.name == otherName }

// Tag returns the tag of an Other kind, or "" for closed-set kinds.
func (k ItemKind) Tag() string { return k.tag }

func (k ItemKind) String() string {
	if k.IsOther() {
		return otherName + "(" + k.tag + ")"
	}
	return k.name
}

func (k ItemKind) MarshalJSON() ([]byte, error) {
	if k.name == "" {
		return nil, fmt.Errorf("cannot encode zero-value item kind")
	}
	if k.IsOther() {
		return json.Marshal(map[string]string{otherName: k.tag})
	}
	return json.Marshal(k.name)
}

func (k *ItemKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		known, ok := knownKinds[name]
		if !ok {
			return fmt.Errorf("unknown item kind: %q", name)
		}
		*k = known
		return nil
	}

	var other map[string]string
	if err := json.Unmarshal(data, &other); err != nil {
		return fmt.Errorf("decoding item kind: %w", err)
	}
	tag, ok := other[otherName]
	if !ok || len(other) != 1 {
		return fmt.Errorf("decoding item kind: expected {%q: tag}, got %s", otherName, data)
	}
	*k = OtherKind(tag)
	return nil
}

// Item is the canonical normalized record stored in the vault. Every
// connector maps its native records into this shape.
//
// Items are immutable after construction: updates are whole-record
// replacements that reuse the same ID. The storage layer does not enforce
// (ConnectorID, SourceID) uniqueness; a connector that wants
// overwrite-on-resync semantics must reuse IDs for re-ingested records.
type Item struct {
	// ID is the vault-assigned primary key. Unique across all stored
	// items, never reused, never supplied by the source system.
	ID string `json:"id"`

	// SourceID identifies the record in its origin system (e.g. a Gmail
	// message ID). Not unique across connectors.
	SourceID string `json:"source_id"`

	// ConnectorID identifies the connector instance that produced the item.
	ConnectorID string `json:"connector_id"`

	Kind ItemKind `json:"kind"`

	// Timestamp is when the underlying fact occurred in the real world,
	// as reported by the source. Connectors without an authoritative
	// source time leave the construction-time default.
	Timestamp time.Time `json:"timestamp"`

	// IngestedAt is when the vault first constructed this item. Set once,
	// never updated on re-ingestion.
	IngestedAt time.Time `json:"ingested_at"`

	// Properties holds kind-specific semi-structured attributes. The core
	// does not validate its shape.
	Properties any `json:"properties"`

	// RawPayload optionally retains the verbatim source record for
	// traceability. nil when absent.
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
}

// NewItem constructs an Item with a fresh unique ID and both times stamped to
// the current UTC time. Connectors holding an authoritative source timestamp
// should overwrite Timestamp after construction.
func NewItem(sourceID, connectorID string, kind ItemKind, properties any) *Item {
	now := time.Now().UTC()
	return &Item{
		ID:          uuid.New().String(),
		SourceID:    sourceID,
		ConnectorID: connectorID,
		Kind:        kind,
		Timestamp:   now,
		IngestedAt:  now,
		Properties:  properties,
	}
}
