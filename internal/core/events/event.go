// Package events defines the immutable domain events emitted by state
// changes on User and Document aggregates.
//
// Every event is built by a constructor in one step: id, then timestamp,
// then schema version, then payload. Fields are unexported; the returned
// value cannot be changed afterwards. Payloads hold only ids, primitives,
// timestamps and sorted string sets copied at construction time.
package events

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the payload schema version stamped on every event.
const SchemaVersion = 1

// AggregateType routes an event to the aggregate it describes.
type AggregateType string

const (
	AggregateUser     AggregateType = "User"
	AggregateDocument AggregateType = "Document"
)

// Type is the discriminant naming the concrete variant.
type Type string

const (
	TypeUserCreated            Type = "UserCreated"
	TypeUserUpdated            Type = "UserUpdated"
	TypeUserLoggedIn           Type = "UserLoggedIn"
	TypeUserRolesChanged       Type = "UserRolesChanged"
	TypeUserPermissionsChanged Type = "UserPermissionsChanged"
	TypeUserDeactivated        Type = "UserDeactivated"

	TypeDocumentCreated           Type = "DocumentCreated"
	TypeDocumentUpdated           Type = "DocumentUpdated"
	TypeDocumentPublished         Type = "DocumentPublished"
	TypeDocumentArchived          Type = "DocumentArchived"
	TypeDocumentCollaboratorAdded Type = "DocumentCollaboratorAdded"
)

// Event is implemented only by the variants in this package. Variants are
// built with their New* constructors; publishers reject anything else.
type Event interface {
	EventID() uuid.UUID
	OccurredAt() time.Time
	EventType() Type
	Version() int
	AggregateID() string
	AggregateType() AggregateType
	// EventData is a pure projection of the payload. Every key is always
	// present so the schema does not vary between instances.
	EventData() map[string]any

	sealed()
}

// ErrNotConstructed is returned by Check for a zero-value variant such as
// UserCreated{}.
var ErrNotConstructed = errors.New("events: event was not built by its constructor")

// Check rejects events that lack the identity a constructor assigns.
func Check(e Event) error {
	if e == nil || e.EventID() == uuid.Nil || e.OccurredAt().IsZero() || e.AggregateID() == "" {
		return ErrNotConstructed
	}
	return nil
}

// Overridden in tests.
var (
	newID = uuid.New
	now   = func() time.Time { return time.Now().UTC() }
)

// Base holds the fields shared by every variant.
type Base struct {
	id            uuid.UUID
	occurredAt    time.Time
	eventType     Type
	version       int
	aggregateID   string
	aggregateType AggregateType
}

func newBase(t Type, aggType AggregateType, aggID string) Base {
	var b Base
	b.id = newID()
	b.occurredAt = now()
	b.version = SchemaVersion
	b.eventType = t
	b.aggregateType = aggType
	b.aggregateID = aggID
	return b
}

func (b Base) EventID() uuid.UUID           { return b.id }
func (b Base) OccurredAt() time.Time        { return b.occurredAt }
func (b Base) EventType() Type              { return b.eventType }
func (b Base) Version() int                 { return b.version }
func (b Base) AggregateID() string          { return b.aggregateID }
func (b Base) AggregateType() AggregateType { return b.aggregateType }

func (Base) sealed() {}

// stringSet copies, de-duplicates and sorts in; nil becomes an empty slice.
func stringSet(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// diff returns the members of a missing from b.
func diff(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; !ok {
			out = append(out, s)
		}
	}
	return stringSet(out)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
