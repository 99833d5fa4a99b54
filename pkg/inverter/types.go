package inverter

import (
	"time"

	"go.uber.org/atomic"
	"growattgateway/pkg/protocol/growatt"
	modbusruntime "growattgateway/pkg/protocol/modbus/runtime"
	"growattgateway/pkg/runtime"
)

// Config describes one inverter to poll.
type Config struct {
	InstanceID string
	Name       string
	Model      string
	Address    modbusruntime.Address
	Timeout    time.Duration
	Interval   time.Duration
	Catalog    *growatt.Catalog
}

type Inverter struct {
	runtime.ObjectMeta
	Address  modbusruntime.Address
	Interval time.Duration

	client    *modbusruntime.Client
	entities  []growatt.Entity
	collector *growatt.Collector
	status    *atomic.Int32
}

func (i *Inverter) GetCollectStatus() string {
	return runtime.CollectStatusToString[runtime.CollectStatus(i.status.Load())]
}

func (i *Inverter) SetCollectStatus(s runtime.CollectStatus) {
	i.status.Store(int32(s))
}

func (i *Inverter) Entities() []growatt.Entity {
	return i.entities
}

func (i *Inverter) States() []*growatt.EntityState {
	states := make([]*growatt.EntityState, 0, len(i.entities))
	for _, e := range i.entities {
		states = append(states, e.State())
	}
	return states
}

// InverterMeta is the api view of an inverter.
type InverterMeta struct {
	runtime.ObjectMeta
	Host          string                 `json:"host"`
	Port          int                    `json:"port"`
	SlaveId       uint8                  `json:"slaveId"`
	Interval      string                 `json:"interval"`
	CollectStatus string                 `json:"collectStatus"`
	Stats         modbusruntime.Stats    `json:"stats"`
	Entities      []*growatt.EntityState `json:"entities,omitempty"`
}

func (i *Inverter) fold(exploded bool) *InverterMeta {
	meta := &InverterMeta{
		ObjectMeta:    i.ObjectMeta,
		Host:          i.Address.Host,
		Port:          i.Address.Port,
		SlaveId:       i.Address.SlaveId,
		Interval:      i.Interval.String(),
		CollectStatus: i.GetCollectStatus(),
		Stats:         i.client.Stats(),
	}
	if exploded {
		meta.Entities = i.States()
	}
	return meta
}
