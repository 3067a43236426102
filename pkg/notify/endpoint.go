// Package notify delivers dialog events to registered HTTP endpoints, signed
// with a per-endpoint secret and retried with backoff.
package notify

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pitabwire/frame/data"

	"github.com/ibsar/voicedialog/pkg/events"
)

// Delivery statuses.
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusDead      = "dead"
)

var (
	// ErrNotFound is returned for an unknown endpoint id.
	ErrNotFound = errors.New("endpoint not found")
	// ErrInvalidEndpoint is returned when an endpoint fails validation.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// Endpoint is a registered event receiver.
type Endpoint struct {
	data.BaseModel

	Name       string   `gorm:"type:varchar(255);not null"  json:"name"`
	URL        string   `gorm:"type:varchar(2048);not null" json:"url"`
	Secret     string   `gorm:"type:varchar(128);not null"  json:"-"`
	EventTypes EventSet `gorm:"type:text"                   json:"event_types"`
	Active     bool     `gorm:"default:true"                json:"active"`
	Failures   int      `gorm:"default:0"                   json:"failures"`
}

func (Endpoint) TableName() string { return "notify_endpoints" }

// Wants reports whether the endpoint receives events of type t. An empty
// set subscribes to everything.
func (e *Endpoint) Wants(t events.EventType) bool {
	return e.Active && (len(e.EventTypes) == 0 || slices.Contains(e.EventTypes, t))
}

// EventSet is stored as a JSON array.
type EventSet []events.EventType

func (s EventSet) Value() (driver.Value, error) {
	if s == nil {
		s = EventSet{}
	}
	b, err := sonic.Marshal([]events.EventType(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *EventSet) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan EventSet from %T", src)
	}
	var out []events.EventType
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return err
	}
	*s = out
	return nil
}

// Delivery records one attempt to deliver an event.
type Delivery struct {
	data.BaseModel

	EndpointID string `gorm:"type:varchar(50);not null;index" json:"endpoint_id"`
	EventID    string `gorm:"type:varchar(50);not null"       json:"event_id"`
	EventType  string `gorm:"type:varchar(100);not null"      json:"event_type"`
	Attempt    int    `gorm:"default:1"                       json:"attempt"`
	Status     string `gorm:"type:varchar(20);not null"       json:"status"`
	StatusCode int    `gorm:"default:0"                       json:"status_code"`
	Error      string `gorm:"type:text"                       json:"error,omitempty"`
	DurationMs int64  `gorm:"default:0"                       json:"duration_ms"`
	// At is when the attempt finished.
	At time.Time `json:"at"`
}

func (Delivery) TableName() string { return "notify_deliveries" }
