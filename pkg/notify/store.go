package notify

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"

	"github.com/ibsar/voicedialog/pkg/events"
)

// Store persists endpoints and their delivery log.
type Store interface {
	Create(ctx context.Context, e *Endpoint) error
	Get(ctx context.Context, id string) (*Endpoint, error)
	List(ctx context.Context) ([]Endpoint, error)
	Delete(ctx context.Context, id string) error
	// Subscribed returns the active endpoints that want t.
	Subscribed(ctx context.Context, t events.EventType) ([]Endpoint, error)
	// RecordResult bumps the endpoint's failure counter; success resets it.
	RecordResult(ctx context.Context, id string, ok bool) error
	RecordDelivery(ctx context.Context, d *Delivery) error
	// Deliveries returns an endpoint's attempts, newest first.
	Deliveries(ctx context.Context, endpointID string, limit int) ([]Delivery, error)
}

const maxMemoryDeliveries = 500

// MemoryStore keeps everything in process.
type MemoryStore struct {
	mu         sync.RWMutex
	endpoints  map[string]Endpoint
	deliveries map[string][]Delivery
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		endpoints:  make(map[string]Endpoint),
		deliveries: make(map[string][]Delivery),
	}
}

func (m *MemoryStore) Create(_ context.Context, e *Endpoint) error {
	if e.ID == "" {
		e.ID = xid.New().String()
	}
	e.CreatedAt = time.Now()
	m.mu.Lock()
	m.endpoints[e.ID] = *e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.endpoints[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *MemoryStore) List(context.Context) ([]Endpoint, error) {
	m.mu.RLock()
	out := make([]Endpoint, 0, len(m.endpoints))
	for _, e := range m.endpoints {
		out = append(out, e)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b Endpoint) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.endpoints[id]; !ok {
		return ErrNotFound
	}
	delete(m.endpoints, id)
	delete(m.deliveries, id)
	return nil
}

func (m *MemoryStore) Subscribed(ctx context.Context, t events.EventType) ([]Endpoint, error) {
	all, _ := m.List(ctx)
	return slices.DeleteFunc(all, func(e Endpoint) bool { return !e.Wants(t) }), nil
}

func (m *MemoryStore) RecordResult(_ context.Context, id string, ok bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, found := m.endpoints[id]
	if !found {
		return ErrNotFound
	}
	if ok {
		e.Failures = 0
	} else {
		e.Failures++
	}
	m.endpoints[id] = e
	return nil
}

func (m *MemoryStore) RecordDelivery(_ context.Context, d *Delivery) error {
	if d.ID == "" {
		d.ID = xid.New().String()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	log := append(m.deliveries[d.EndpointID], *d)
	if len(log) > maxMemoryDeliveries {
		log = log[len(log)-maxMemoryDeliveries:]
	}
	m.deliveries[d.EndpointID] = log
	return nil
}

func (m *MemoryStore) Deliveries(_ context.Context, endpointID string, limit int) ([]Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	log := m.deliveries[endpointID]
	out := make([]Delivery, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, log[i])
	}
	return out, nil
}

// DB yields gorm handles. frame's datastore pool implements it.
type DB interface {
	DB(ctx context.Context, readOnly bool) *gorm.DB
}

// SQLStore keeps endpoints and deliveries in the service database.
type SQLStore struct {
	pool DB
}

// NewSQLStore migrates the tables and returns the store.
func NewSQLStore(ctx context.Context, pool DB) (*SQLStore, error) {
	if err := pool.DB(ctx, false).AutoMigrate(&Endpoint{}, &Delivery{}); err != nil {
		return nil, fmt.Errorf("migrate notify tables: %w", err)
	}
	return &SQLStore{pool: pool}, nil
}

func (s *SQLStore) Create(ctx context.Context, e *Endpoint) error {
	return s.pool.DB(ctx, false).Create(e).Error
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Endpoint, error) {
	var e Endpoint
	err := s.pool.DB(ctx, true).Where("id = ?", id).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *SQLStore) List(ctx context.Context) ([]Endpoint, error) {
	var out []Endpoint
	err := s.pool.DB(ctx, true).Order("created_at").Find(&out).Error
	return out, err
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res := s.pool.DB(ctx, false).Where("id = ?", id).Delete(&Endpoint{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Subscribed filters in process; the event set column is plain JSON text so
// the query stays portable across drivers.
func (s *SQLStore) Subscribed(ctx context.Context, t events.EventType) ([]Endpoint, error) {
	var out []Endpoint
	if err := s.pool.DB(ctx, true).Where("active = ?", true).Find(&out).Error; err != nil {
		return nil, err
	}
	return slices.DeleteFunc(out, func(e Endpoint) bool { return !e.Wants(t) }), nil
}

func (s *SQLStore) RecordResult(ctx context.Context, id string, ok bool) error {
	q := s.pool.DB(ctx, false).Model(&Endpoint{}).Where("id = ?", id)
	if ok {
		return q.Update("failures", 0).Error
	}
	return q.Update("failures", gorm.Expr("failures + 1")).Error
}

func (s *SQLStore) RecordDelivery(ctx context.Context, d *Delivery) error {
	return s.pool.DB(ctx, false).Create(d).Error
}

func (s *SQLStore) Deliveries(ctx context.Context, endpointID string, limit int) ([]Delivery, error) {
	var out []Delivery
	q := s.pool.DB(ctx, true).Where("endpoint_id = ?", endpointID).Order("at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
