package runtime

import (
	"net"
	"strconv"
)

type Stats struct {
	Connected bool   `json:"connected"`
	Reads     uint64 `json:"reads"`
	Failures  uint64 `json:"failures"`
	Connects  uint64 `json:"connects"`
}

type Address struct {
	Host    string `json:"host"`    // IP地址
	Port    int    `json:"port"`    // 端口号
	SlaveId uint8  `json:"slaveId"` // 下位机号
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}
