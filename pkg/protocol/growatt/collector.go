package growatt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"growattgateway/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

var _ runtime.Collector = (*Collector)(nil)

// Closer releases the connection shared by the entities of one inverter.
type Closer interface {
	Close(ctx context.Context) error
}

type Collector struct {
	InstanceID string
	Interval   time.Duration
	Entities   []Entity
	VariableCh chan *runtime.ParseVariableResult

	closer  Closer
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

func NewCollector(instanceID string, interval time.Duration, entities []Entity, closer Closer) (*Collector, chan *runtime.ParseVariableResult) {
	c := &Collector{
		InstanceID: instanceID,
		Interval:   interval,
		Entities:   entities,
		VariableCh: make(chan *runtime.ParseVariableResult, 1),
		closer:     closer,
	}
	return c, c.VariableCh
}

// Collect polls every Interval until Destroy is called or ctx is done. Each
// cycle result is delivered on VariableCh.
func (c *Collector) Collect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.cancel != nil {
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		wait.UntilWithContext(ctx, func(ctx context.Context) {
			pvr := c.Poll(ctx)
			select {
			case c.VariableCh <- pvr:
			case <-ctx.Done():
			}
		}, c.Interval)
	}()
	klog.V(2).InfoS("Started collecting", "instance", c.InstanceID, "interval", c.Interval, "entities", len(c.Entities))
}

// Poll refreshes every entity once. Entities share one connection so the
// reads are serialized underneath, a failed entity keeps its last value.
func (c *Collector) Poll(ctx context.Context) *runtime.ParseVariableResult {
	wg := &sync.WaitGroup{}
	failed := make([]bool, len(c.Entities))
	for i, e := range c.Entities {
		wg.Add(1)
		go func(i int, e Entity) {
			defer wg.Done()
			failed[i] = !e.Refresh(ctx)
		}(i, e)
	}
	wg.Wait()

	pvr := &runtime.ParseVariableResult{
		Timestamp:     time.Now(),
		VariableSlice: make([]runtime.VariableValue, 0, len(c.Entities)),
	}
	for i, e := range c.Entities {
		if failed[i] {
			pvr.Err = append(pvr.Err, fmt.Errorf("failed to refresh %s", e.GetID()))
		}
		if state := e.State(); state.Value != nil {
			pvr.VariableSlice = append(pvr.VariableSlice, state)
		}
	}
	klog.V(5).InfoS("Polled entities", "instance", c.InstanceID, "values", len(pvr.VariableSlice), "failures", len(pvr.Err))
	return pvr
}

func (c *Collector) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Destroy stops collecting, closes the connection and VariableCh. It is safe
// to call more than once.
func (c *Collector) Destroy(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true

	if c.cancel != nil {
		c.cancel()
		select {
		case <-c.done:
		case <-ctx.Done():
			klog.V(2).InfoS("Failed to wait for collect loop", "instance", c.InstanceID, "err", ctx.Err())
		}
	}
	if c.closer != nil {
		if err := c.closer.Close(ctx); err != nil {
			klog.V(2).InfoS("Failed to close modbus connection", "instance", c.InstanceID, "err", err)
		}
	}
	// the loop may still be running when ctx expired first
	if c.cancel == nil || isClosed(c.done) {
		close(c.VariableCh)
	}
	klog.V(2).InfoS("Stopped collecting", "instance", c.InstanceID)
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
