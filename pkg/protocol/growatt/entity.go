package growatt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"growattgateway/pkg/runtime"
)

var _ Entity = (*Sensor16)(nil)
var _ Entity = (*Sensor32)(nil)
var _ runtime.VariableValue = (*EntityState)(nil)

// RegisterReader is satisfied by the modbus connection manager.
type RegisterReader interface {
	ReadInputRegisters(ctx context.Context, address uint16, count uint16) ([]uint16, bool)
}

type Entity interface {
	GetID() string
	GetName() string
	Spec() RegisterSpec
	Width() int
	// Value is the last successfully decoded value, nil before the first one.
	Value() interface{}
	// Refresh polls the device once. On failure the previous value is kept.
	Refresh(ctx context.Context) bool
	State() *EntityState
}

// EntityState is a point in time copy of an entity.
type EntityState struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Address     uint16      `json:"address"`
	Width       int         `json:"width"`
	Unit        string      `json:"unit,omitempty"`
	DeviceClass string      `json:"deviceClass,omitempty"`
	StateClass  string      `json:"stateClass,omitempty"`
	Value       interface{} `json:"value"`
	UpdatedAt   *time.Time  `json:"updatedAt,omitempty"`
}

func (s *EntityState) GetID() string           { return s.ID }
func (s *EntityState) GetName() string         { return s.Name }
func (s *EntityState) GetValue() interface{}   { return s.Value }
func (s *EntityState) GetVariableName() string { return s.ID }

type sensor struct {
	id      string
	name    string
	spec    RegisterSpec
	catalog *Catalog
	reader  RegisterReader

	mu        sync.RWMutex
	value     interface{}
	updatedAt time.Time
}

func (s *sensor) GetID() string      { return s.id }
func (s *sensor) GetName() string    { return s.name }
func (s *sensor) Spec() RegisterSpec { return s.spec }

func (s *sensor) Value() interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

func (s *sensor) store(v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.updatedAt = time.Now()
}

func (s *sensor) state(width int) *EntityState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	es := &EntityState{
		ID:          s.id,
		Name:        s.name,
		Address:     s.spec.Address,
		Width:       width,
		Unit:        s.spec.Unit,
		DeviceClass: s.spec.DeviceClass,
		StateClass:  s.spec.StateClass,
		Value:       s.value,
	}
	if !s.updatedAt.IsZero() {
		t := s.updatedAt
		es.UpdatedAt = &t
	}
	return es
}

// Sensor16 is one input register.
type Sensor16 struct {
	sensor
}

func NewSensor16(instanceID string, c *Catalog, spec RegisterSpec, reader RegisterReader) *Sensor16 {
	return &Sensor16{sensor{
		id:      fmt.Sprintf("%s_%d", instanceID, spec.Address),
		name:    spec.Name,
		spec:    spec,
		catalog: c,
		reader:  reader,
	}}
}

func (s *Sensor16) Width() int { return 16 }

func (s *Sensor16) Refresh(ctx context.Context) bool {
	words, ok := s.reader.ReadInputRegisters(ctx, s.spec.Address, 1)
	if !ok {
		return false
	}
	s.store(Decode16(s.catalog, s.spec, words[0]))
	return true
}

func (s *Sensor16) State() *EntityState { return s.state(16) }

// Sensor32 is a high/low register pair read in one transaction. Metadata
// comes from the high half.
type Sensor32 struct {
	sensor
	low RegisterSpec
}

func NewSensor32(instanceID string, c *Catalog, high RegisterSpec, low RegisterSpec, reader RegisterReader) *Sensor32 {
	return &Sensor32{
		sensor: sensor{
			id:      fmt.Sprintf("%s_%d_32bit", instanceID, high.Address),
			name:    c.DisplayName(high),
			spec:    high,
			catalog: c,
			reader:  reader,
		},
		low: low,
	}
}

func (s *Sensor32) Width() int { return 32 }

func (s *Sensor32) Low() RegisterSpec { return s.low }

func (s *Sensor32) Refresh(ctx context.Context) bool {
	words, ok := s.reader.ReadInputRegisters(ctx, s.spec.Address, 2)
	if !ok {
		return false
	}
	s.store(Decode32(s.catalog, s.spec, words[0], words[1]))
	return true
}

func (s *Sensor32) State() *EntityState { return s.state(32) }
