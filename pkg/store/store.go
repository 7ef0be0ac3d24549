// Package store defines the Mass primitive entity registry (the entity
// records the rest of the system reads by id) as a plain interface with
// an in-memory implementation, plus an optional
// Postgres-backed implementation for deployments that want durable
// storage. The core's own tests never require the Postgres path.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/zonetrust/compliance-core/pkg/apierrors"
)

// Entity is the minimal record the core cares about: the fields every
// write-path jurisdiction/sovereignty decision needs to read.
type Entity struct {
	ID             uuid.UUID      `json:"id"`
	JurisdictionID string         `json:"jurisdiction_id"`
	LegalName      string         `json:"legal_name"`
	EntityType     string         `json:"entity_type"`
	Attributes     map[string]any `json:"attributes,omitempty"`
}

// Entities is the Mass primitive registry for entity records.
type Entities interface {
	Create(ctx context.Context, e Entity) (Entity, error)
	Get(ctx context.Context, id uuid.UUID) (Entity, error)
	Update(ctx context.Context, e Entity) (Entity, error)
}

// MemEntities is an in-memory Entities implementation.
type MemEntities struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Entity
}

func NewMemEntities() *MemEntities {
	return &MemEntities{records: make(map[uuid.UUID]Entity)}
}

func (m *MemEntities) Create(_ context.Context, e Entity) (Entity, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[e.ID]; exists {
		return Entity{}, apierrors.Conflict("entity %s already exists", e.ID)
	}
	m.records[e.ID] = e
	return e, nil
}

func (m *MemEntities) Get(_ context.Context, id uuid.UUID) (Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.records[id]
	if !ok {
		return Entity{}, apierrors.NotFound("entity %s", id)
	}
	return e, nil
}

func (m *MemEntities) Update(_ context.Context, e Entity) (Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[e.ID]; !ok {
		return Entity{}, apierrors.NotFound("entity %s", e.ID)
	}
	m.records[e.ID] = e
	return e, nil
}
