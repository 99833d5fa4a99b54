package runtime

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
)

// Messenger is one wire transport to a modbus server. Implementations are
// not expected to be safe for concurrent use; Client serializes access.
type Messenger interface {
	Connect() error
	ReadInputRegisters(address uint16, quantity uint16) ([]uint16, error)
	Close() error
}

// Client owns a single modbus connection. At most one transaction is in
// flight; callers queue in arrival order and every failure is reported as
// "no data" after the connection has been marked disconnected.
type Client struct {
	Name      string
	messenger Messenger
	// sem is a single slot lock, blocked senders are released FIFO
	sem       chan struct{}
	connected *atomic.Bool

	reads    *atomic.Uint64
	failures *atomic.Uint64
	connects *atomic.Uint64
}

func NewClient(name string, messenger Messenger) *Client {
	return &Client{
		Name:      name,
		messenger: messenger,
		sem:       make(chan struct{}, 1),
		connected: atomic.NewBool(false),
		reads:     atomic.NewUint64(0),
		failures:  atomic.NewUint64(0),
		connects:  atomic.NewUint64(0),
	}
}

func (c *Client) lock(ctx context.Context) error {
	select {
	default:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) unlock() {
	<-c.sem
}

// ReadInputRegisters reads count input registers starting at address. The
// returned slice holds exactly count words, index 0 being the lowest address.
// ok is false when no data could be obtained.
func (c *Client) ReadInputRegisters(ctx context.Context, address uint16, count uint16) ([]uint16, bool) {
	if count == 0 || count > MaxReadQuantity {
		klog.V(2).InfoS("Failed to read input registers", "client", c.Name, "address", address, "count", count, "error", ErrQuantity)
		return nil, false
	}

	if err := c.lock(ctx); err != nil {
		klog.V(4).InfoS("Gave up waiting for modbus connection", "client", c.Name, "address", address, "error", err)
		return nil, false
	}
	defer c.unlock()

	c.reads.Inc()
	if !c.connected.Load() {
		if err := c.messenger.Connect(); err != nil {
			c.failures.Inc()
			klog.V(2).InfoS("Failed to connect modbus server", "client", c.Name, "error", err)
			return nil, false
		}
		c.connected.Store(true)
		c.connects.Inc()
		klog.V(3).InfoS("Connected modbus server", "client", c.Name)
	}

	words, err := c.messenger.ReadInputRegisters(address, count)
	if err == nil && len(words) != int(count) {
		err = errors.Wrapf(ErrMessageDataLengthNotEnough, "want %d words, got %d", count, len(words))
	}
	if err != nil {
		c.failures.Inc()
		klog.V(2).InfoS("Failed to read input registers", "client", c.Name, "address", address, "count", count, "error", err)
		c.disconnect()
		return nil, false
	}

	return words, true
}

// disconnect must be called with the lock held.
func (c *Client) disconnect() {
	if err := c.messenger.Close(); err != nil {
		klog.V(4).InfoS("Failed to close modbus connection", "client", c.Name, "error", err)
	}
	c.connected.Store(false)
}

// Close tears down the connection if one is open. It is safe to call more
// than once.
func (c *Client) Close(ctx context.Context) error {
	if err := c.lock(ctx); err != nil {
		return err
	}
	defer c.unlock()

	if c.connected.Load() {
		c.disconnect()
		klog.V(3).InfoS("Closed modbus connection", "client", c.Name)
	}
	return nil
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) Stats() Stats {
	return Stats{
		Connected: c.connected.Load(),
		Reads:     c.reads.Load(),
		Failures:  c.failures.Load(),
		Connects:  c.connects.Load(),
	}
}
