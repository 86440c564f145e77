package wireproto

import (
	"fmt"
	"net"
	"time"
)

// Dial connects to ip:port and wraps the connection.
func Dial(ip string, port int) (*Conn, error) {
	c, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", ip, port), 5*time.Second)
	if err != nil {
		return nil, err
	}
	return NewConn(c), nil
}
