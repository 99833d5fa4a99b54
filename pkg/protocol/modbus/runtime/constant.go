package runtime

import "errors"

var ErrConnect = errors.New("modbus tcp connect failed")
var ErrBadConn = errors.New("modbus tcp bad connection")
var ErrServerBadResp = errors.New("modbus server exception response")
var ErrMessageDataLengthNotEnough = errors.New("modbus tcp message data length not enough")
var ErrQuantity = errors.New("modbus register quantity out of range")

type FunctionCode uint8

const (
	ReadInputRegister FunctionCode = 4
)

const (
	// MaxReadQuantity modbus 一次最多读取125个寄存器
	MaxReadQuantity = 125
)
