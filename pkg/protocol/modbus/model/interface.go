package model

import (
	"time"

	modbusruntime "growattgateway/pkg/protocol/modbus/runtime"
)

// NewMessenger builds the transport for one modbus server.
type NewMessenger func(address modbusruntime.Address, timeout time.Duration) modbusruntime.Messenger

var ModbusModelers = map[string]NewMessenger{
	"modbusTcp": func(address modbusruntime.Address, timeout time.Duration) modbusruntime.Messenger {
		return NewModbusTcp(address, timeout)
	},
}
