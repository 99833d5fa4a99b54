package model

import (
	"time"

	"github.com/goburrow/modbus"
	"github.com/pkg/errors"
	modbusruntime "growattgateway/pkg/protocol/modbus/runtime"
	"growattgateway/pkg/utils/binutil"
	"k8s.io/klog/v2"
)

var _ modbusruntime.Messenger = (*ModbusTcp)(nil)

// ModbusTcp is a modbus tcp transport that only issues function code 04.
// The connection is kept open until Close, idle disconnects are disabled so
// the connection lifecycle stays with the caller.
type ModbusTcp struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

func NewModbusTcp(address modbusruntime.Address, timeout time.Duration) *ModbusTcp {
	handler := modbus.NewTCPClientHandler(address.String())
	handler.Timeout = timeout
	handler.IdleTimeout = 0
	handler.SlaveId = address.SlaveId
	return &ModbusTcp{
		handler: handler,
		client:  modbus.NewClient(handler),
	}
}

func (m *ModbusTcp) Connect() error {
	if err := m.handler.Connect(); err != nil {
		return errors.Wrapf(modbusruntime.ErrConnect, "%s: %v", m.handler.Address, err)
	}
	return nil
}

func (m *ModbusTcp) ReadInputRegisters(address uint16, quantity uint16) ([]uint16, error) {
	results, err := m.client.ReadInputRegisters(address, quantity)
	if err != nil {
		var me *modbus.ModbusError
		if errors.As(err, &me) {
			return nil, errors.Wrapf(modbusruntime.ErrServerBadResp, "function code %d exception %d", me.FunctionCode, me.ExceptionCode)
		}
		return nil, errors.Wrapf(modbusruntime.ErrBadConn, "%v", err)
	}

	// goburrow only checks the byte count against the payload, not the quantity asked for
	if len(results) != int(quantity)*2 {
		klog.V(4).InfoS("Unexpected input register payload", "address", address, "quantity", quantity, "bytes", len(results))
		return nil, errors.Wrapf(modbusruntime.ErrMessageDataLengthNotEnough, "want %d bytes, got %d", int(quantity)*2, len(results))
	}

	return ParseWords(results), nil
}

func (m *ModbusTcp) Close() error {
	return m.handler.Close()
}

// ParseWords splits a big endian register payload into words.
func ParseWords(data []byte) []uint16 {
	words := make([]uint16, len(data)/2)
	for i := range words {
		words[i] = binutil.ParseUint16BigEndian(data[2*i:])
	}
	return words
}
