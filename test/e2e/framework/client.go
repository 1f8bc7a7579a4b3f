package framework

import (
	"fmt"
	"io"
	"net"
	"time"
)

// Request opens a fresh connection to addr, sends payload and returns the
// full reply the server wrote before closing.
func Request(addr string, payload string, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}

	if _, err := io.WriteString(conn, payload); err != nil {
		return "", fmt.Errorf("write request: %w", err)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	return string(reply), nil
}
