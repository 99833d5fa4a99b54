// Package simulator is an in-process modbus tcp server answering function
// code 04 from a register map. It is used by tests that need a real wire.
package simulator

import (
	"io"
	"net"
	"strconv"
	"sync"

	"go.uber.org/atomic"
	"growattgateway/pkg/utils/binutil"
	"k8s.io/klog/v2"
)

/**
modbus tcp报文
tcp报文头(7) = 事务标识(2) + 协议标识(2) + 长度(2) + 设备地址(1)
pdu = 功能码(1) + 数据
*/

const (
	mbapLength = 7

	ExceptionIllegalFunction    = 0x01
	ExceptionIllegalDataAddress = 0x02
)

type Server struct {
	listener  net.Listener
	mu        sync.Mutex
	registers map[uint16]uint16
	conns     map[net.Conn]struct{}
	requests  *atomic.Uint64
	wg        sync.WaitGroup
}

func Start(registers map[uint16]uint16) (*Server, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	rs := make(map[uint16]uint16, len(registers))
	for k, v := range registers {
		rs[k] = v
	}
	s := &Server{
		listener:  l,
		registers: rs,
		conns:     make(map[net.Conn]struct{}),
		requests:  atomic.NewUint64(0),
	}
	s.wg.Add(1)
	go s.accept()
	return s, nil
}

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

func (s *Server) Requests() uint64 {
	return s.requests.Load()
}

func (s *Server) SetRegister(address uint16, value uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registers[address] = value
}

func (s *Server) DeleteRegister(address uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.registers, address)
}

// DropConnections closes every accepted connection, the listener keeps
// accepting new ones.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
		delete(s.conns, c)
	}
}

func (s *Server) Close() {
	_ = s.listener.Close()
	s.DropConnections()
	s.wg.Wait()
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	header := make([]byte, mbapLength)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		length := binutil.ParseUint16(header[4:])
		if length < 2 {
			klog.V(4).InfoS("Invalid modbus tcp message length", "length", length)
			return
		}
		pdu := make([]byte, length-1)
		if _, err := io.ReadFull(conn, pdu); err != nil {
			return
		}
		s.requests.Inc()
		if _, err := conn.Write(s.respond(header, pdu)); err != nil {
			return
		}
	}
}

func (s *Server) respond(header []byte, pdu []byte) []byte {
	functionCode := pdu[0]
	if functionCode != 4 || len(pdu) < 5 {
		return frame(header, []byte{functionCode | 0x80, ExceptionIllegalFunction})
	}
	start := binutil.ParseUint16(pdu[1:])
	quantity := binutil.ParseUint16(pdu[3:])

	s.mu.Lock()
	data := make([]byte, 2+2*int(quantity))
	data[0] = functionCode
	data[1] = byte(2 * quantity)
	for i := uint16(0); i < quantity; i++ {
		v, ok := s.registers[start+i]
		if !ok {
			s.mu.Unlock()
			return frame(header, []byte{functionCode | 0x80, ExceptionIllegalDataAddress})
		}
		binutil.WriteUint16(data[2+2*i:], v)
	}
	s.mu.Unlock()
	return frame(header, data)
}

func frame(header []byte, pdu []byte) []byte {
	message := make([]byte, mbapLength+len(pdu))
	copy(message, header[:4])                            // 事务标识 + 协议标识
	binutil.WriteUint16(message[4:], uint16(len(pdu)+1)) // 剩余长度
	message[6] = header[6]
	copy(message[mbapLength:], pdu)
	return message
}
