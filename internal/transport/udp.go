package transport

import (
	"fmt"
	"net"
)

// Sender delivers one encoded update. Implementations are best-effort;
// callers treat a failed send as consumed.
type Sender interface {
	Send(functionID uint16, value uint8, highPriority bool) error
}

// UDPSender writes packets to a fixed simulator address.
type UDPSender struct {
	conn *net.UDPConn
	addr *net.UDPAddr
}

func NewUDPSender(addr string) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &UDPSender{conn: conn, addr: udpAddr}, nil
}

func (u *UDPSender) Send(functionID uint16, value uint8, highPriority bool) error {
	p := Encode(functionID, value, highPriority)
	if _, err := u.conn.Write(p[:]); err != nil {
		return fmt.Errorf("transport: send function %d: %w", functionID, err)
	}
	return nil
}

func (u *UDPSender) Close() error {
	return u.conn.Close()
}

func (u *UDPSender) Target() string {
	return u.addr.String()
}
