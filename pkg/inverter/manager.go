package inverter

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
	"growattgateway/pkg/broker"
	"growattgateway/pkg/metrics"
	"growattgateway/pkg/protocol/growatt"
	"growattgateway/pkg/protocol/modbus/model"
	modbusruntime "growattgateway/pkg/protocol/modbus/runtime"
	"growattgateway/pkg/runtime"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"
)

var _ metrics.Source = (*Manager)(nil)

var (
	ErrDuplicateInstance = errors.New("duplicate instance id")
	ErrInverterStopped   = errors.New("inverter stopped")
)

// Publisher receives inverter states, it is implemented by broker.Publisher.
type Publisher interface {
	Announce(instanceID string, sensors []broker.Sensor)
	PublishAvailability(instanceID string, online bool)
	PublishStates(instanceID string, pvr *runtime.ParseVariableResult)
	PublishData(instanceID string, pvr *runtime.ParseVariableResult)
	Disconnect()
}

type Option func(*Manager)

func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

func WithModeler(name string, f model.NewMessenger) Option {
	return func(m *Manager) {
		m.modelers[name] = f
	}
}

func WithCloser(lc runtime.LabeledCloser) Option {
	return func(m *Manager) {
		m.closers = append(m.closers, lc)
	}
}

type Manager struct {
	configs   []Config
	inverters *xsync.MapOf[string, *Inverter]
	modelers  map[string]model.NewMessenger
	publisher Publisher
	closers   []runtime.LabeledCloser
	wg        sync.WaitGroup
	stopCh    <-chan struct{}
}

func NewManager(configs []Config, stop <-chan struct{}, opts ...Option) *Manager {
	m := &Manager{
		configs:   configs,
		inverters: xsync.NewMapOf[string, *Inverter](),
		modelers:  make(map[string]model.NewMessenger, len(model.ModbusModelers)),
		stopCh:    stop,
	}
	for k, v := range model.ModbusModelers {
		m.modelers[k] = v
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init builds every configured inverter and starts collecting. Connecting is
// lazy, an unreachable inverter is still started and reported offline.
func (m *Manager) Init(ctx context.Context) error {
	for _, c := range m.configs {
		inv, err := m.newInverter(c)
		if err == nil {
			if _, loaded := m.inverters.LoadOrStore(inv.GetID(), inv); loaded {
				err = errors.Wrapf(ErrDuplicateInstance, "instance %s", inv.GetID())
			}
		}
		if err != nil {
			// stop the inverters started so far
			if serr := m.Shutdown(ctx); serr != nil {
				klog.V(2).InfoS("Failed to shutdown after init error", "err", serr)
			}
			return err
		}
		m.readyCollect(ctx, inv)
	}
	return nil
}

func (m *Manager) newInverter(c Config) (*Inverter, error) {
	modelName := c.Model
	if len(modelName) == 0 {
		modelName = defaultModel
	}
	newMessenger, ok := m.modelers[modelName]
	if !ok {
		return nil, errors.Errorf("unsupported model %q", modelName)
	}
	catalog := c.Catalog
	if catalog == nil {
		catalog = growatt.DefaultCatalog()
	}
	name := c.Name
	if len(name) == 0 {
		name = c.InstanceID
	}

	client := modbusruntime.NewClient(c.InstanceID, newMessenger(c.Address, c.Timeout))
	entities := growatt.BuildEntities(c.InstanceID, catalog, client)
	collector, _ := growatt.NewCollector(c.InstanceID, c.Interval, entities, client)

	inv := &Inverter{
		ObjectMeta: runtime.ObjectMeta{
			Name:    name,
			ID:      c.InstanceID,
			ModTime: time.Now(),
		},
		Address:   c.Address,
		Interval:  c.Interval,
		client:    client,
		entities:  entities,
		collector: collector,
		status:    atomic.NewInt32(int32(runtime.Unconnected)),
	}
	klog.V(2).InfoS("Created inverter", "instance", c.InstanceID, "address", c.Address.String(), "entities", len(entities))
	return inv, nil
}

func (m *Manager) readyCollect(ctx context.Context, inv *Inverter) {
	if m.publisher != nil {
		m.publisher.Announce(inv.GetID(), sensors(inv.entities))
		m.publisher.PublishAvailability(inv.GetID(), false)
	}

	inv.collector.Collect(ctx)
	m.wg.Add(1)
	go m.consume(inv, inv.collector.VariableCh)
}

func (m *Manager) consume(inv *Inverter, results chan *runtime.ParseVariableResult) {
	defer m.wg.Done()
	online := false
	for {
		select {
		case _, ok := <-m.stopCh:
			if !ok {
				return
			}
		case pvr, ok := <-results:
			if !ok {
				klog.V(2).InfoS("Stopped to collect data", "instance", inv.GetID())
				return
			}
			// one answered read in the cycle is enough to call it online
			reachable := len(pvr.Err) < len(inv.entities)
			if reachable {
				inv.SetCollectStatus(runtime.Collecting)
			} else {
				inv.SetCollectStatus(runtime.Unconnected)
			}
			if m.publisher == nil {
				continue
			}
			if reachable != online {
				online = reachable
				m.publisher.PublishAvailability(inv.GetID(), online)
			}
			if reachable {
				m.publisher.PublishStates(inv.GetID(), pvr)
				m.publisher.PublishData(inv.GetID(), pvr)
			}
		}
	}
}

func sensors(entities []growatt.Entity) []broker.Sensor {
	ss := make([]broker.Sensor, 0, len(entities))
	for _, e := range entities {
		spec := e.Spec()
		ss = append(ss, broker.Sensor{
			ID:          e.GetID(),
			Name:        e.GetName(),
			Unit:        spec.Unit,
			DeviceClass: spec.DeviceClass,
			StateClass:  spec.StateClass,
		})
	}
	return ss
}

func (m *Manager) ListInverters(filter *runtime.ObjectFilter, exploded bool) []*InverterMeta {
	predicates := runtime.ParseObjectFilter(filter)
	metas := make([]*InverterMeta, 0, m.inverters.Size())
	m.inverters.Range(func(key string, inv *Inverter) bool {
		if runtime.Match(inv, predicates) {
			metas = append(metas, inv.fold(exploded))
		}
		return true
	})
	sort.Slice(metas, func(i, j int) bool { return metas[i].ID < metas[j].ID })
	return metas
}

func (m *Manager) GetInverter(id string) (*Inverter, error) {
	inv, ok := m.inverters.Load(id)
	if !ok {
		return nil, os.ErrNotExist
	}
	return inv, nil
}

func (m *Manager) GetInverterById(id string, exploded bool) (*InverterMeta, error) {
	inv, err := m.GetInverter(id)
	if err != nil {
		return nil, err
	}
	return inv.fold(exploded), nil
}

func (m *Manager) ListEntities(id string, filter *runtime.ObjectFilter) ([]*growatt.EntityState, error) {
	inv, err := m.GetInverter(id)
	if err != nil {
		return nil, err
	}
	predicates := runtime.ParseObjectFilter(filter)
	states := make([]*growatt.EntityState, 0, len(inv.entities))
	for _, s := range inv.States() {
		if runtime.Match(s, predicates) {
			states = append(states, s)
		}
	}
	return states, nil
}

func (m *Manager) GetEntity(id string, entityID string) (*growatt.EntityState, error) {
	inv, err := m.GetInverter(id)
	if err != nil {
		return nil, err
	}
	for _, e := range inv.entities {
		if e.GetID() == entityID {
			return e.State(), nil
		}
	}
	return nil, os.ErrNotExist
}

// Refresh runs one poll cycle outside the schedule. The returned result holds
// the failures of this cycle.
func (m *Manager) Refresh(ctx context.Context, id string) (*runtime.ParseVariableResult, error) {
	inv, err := m.GetInverter(id)
	if err != nil {
		return nil, err
	}
	// a poll after Destroy would reopen the closed connection
	if inv.collector.Stopped() {
		return nil, errors.Wrapf(ErrInverterStopped, "instance %s", id)
	}
	return inv.collector.Poll(ctx), nil
}

// Samples snapshots every inverter for the metrics collector.
func (m *Manager) Samples() []metrics.Sample {
	samples := make([]metrics.Sample, 0, m.inverters.Size())
	m.inverters.Range(func(key string, inv *Inverter) bool {
		samples = append(samples, metrics.Sample{
			Instance: key,
			Stats:    inv.client.Stats(),
			Entities: inv.States(),
		})
		return true
	})
	return samples
}

func (m *Manager) Shutdown(ctx context.Context) error {
	m.inverters.Range(func(key string, inv *Inverter) bool {
		inv.collector.Destroy(ctx)
		return true
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		klog.V(2).InfoS("Failed to wait for consumers", "err", ctx.Err())
	}

	// consumers are gone, nothing can flip the status back
	m.inverters.Range(func(key string, inv *Inverter) bool {
		inv.SetCollectStatus(runtime.Stopped)
		if m.publisher != nil {
			m.publisher.PublishAvailability(key, false)
		}
		return true
	})
	if m.publisher != nil {
		m.publisher.Disconnect()
	}

	var errs []error
	for i := len(m.closers); i > 0; i-- {
		lc := m.closers[i-1]
		if err := lc.Closer(ctx); err != nil {
			klog.V(2).InfoS("Failed to stopped Dependencies service", "service", lc.Label)
			errs = append(errs, errors.Wrapf(err, "close %s", lc.Label))
		}
	}
	return utilerrors.NewAggregate(errs)
}
