package inverter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"growattgateway/pkg/protocol/growatt"
	modbusruntime "growattgateway/pkg/protocol/modbus/runtime"
	"growattgateway/test/simulator"
)

// growattRegisters covers every address of the built-in catalog.
func growattRegisters() map[uint16]uint16 {
	rs := make(map[uint16]uint16)
	for _, r := range growatt.DefaultCatalog().Registers {
		rs[r.Address] = 0
	}
	rs[0] = 1
	rs[1], rs[2] = 0x0001, 0x86A0 // 100000 * 0.1
	rs[38] = 2305
	rs[1009], rs[1010] = 0x0000, 0x03E8 // charging 1000 * 0.1
	rs[1014] = 87
	return rs
}

func TestManagerAgainstSimulator(t *testing.T) {
	require := require.New(t)

	s, err := simulator.Start(growattRegisters())
	require.NoError(err)
	defer s.Close()

	m := NewManager([]Config{{
		InstanceID: "growatt",
		Address:    modbusruntime.Address{Host: s.Host(), Port: s.Port(), SlaveId: 1},
		Timeout:    time.Second,
		Interval:   20 * time.Millisecond,
	}}, nil)
	require.NoError(m.Init(context.Background()))
	defer m.Shutdown(context.Background())

	inv, err := m.GetInverter("growatt")
	require.NoError(err)
	require.Len(inv.Entities(), 19)

	require.Eventually(func() bool {
		state, err := m.GetEntity("growatt", "growatt_1014")
		return err == nil && state.Value != nil
	}, 2*time.Second, 10*time.Millisecond)

	state, err := m.GetEntity("growatt", "growatt_0")
	require.NoError(err)
	require.Equal("正常", state.Value)

	state, err = m.GetEntity("growatt", "growatt_1_32bit")
	require.NoError(err)
	require.Equal("光伏总功率", state.Name)
	require.InDelta(10000.0, state.Value, 1e-6)

	state, err = m.GetEntity("growatt", "growatt_1009_32bit")
	require.NoError(err)
	require.InDelta(-100.0, state.Value, 1e-6)

	state, err = m.GetEntity("growatt", "growatt_1014")
	require.NoError(err)
	require.Equal(uint16(87), state.Value)

	// one register starts failing with an exception, the rest keep updating
	s.DeleteRegister(38)
	s.SetRegister(1014, 88)
	require.Eventually(func() bool {
		state, _ := m.GetEntity("growatt", "growatt_1014")
		return state.Value == uint16(88)
	}, 2*time.Second, 10*time.Millisecond)
	state, err = m.GetEntity("growatt", "growatt_38")
	require.NoError(err)
	require.InDelta(230.5, state.Value, 1e-6)

	// the connection is dropped under the poller and re-established
	connects := inv.client.Stats().Connects
	s.DropConnections()
	s.SetRegister(1014, 89)
	require.Eventually(func() bool {
		state, _ := m.GetEntity("growatt", "growatt_1014")
		return state.Value == uint16(89)
	}, 2*time.Second, 10*time.Millisecond)
	require.Greater(inv.client.Stats().Connects, connects)
}
