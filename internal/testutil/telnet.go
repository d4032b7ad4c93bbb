package testutil

import (
	"net"
	"strings"
	"testing"
	"time"
)

// TelnetClient is a minimal line-oriented client for exercising the
// server over a real TCP connection in tests.
type TelnetClient struct {
	t       *testing.T
	conn    net.Conn
	pending []byte
}

// DialTelnet connects to addr and returns a client that fails the test
// on I/O errors.
func DialTelnet(t *testing.T, addr string) *TelnetClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("dialing %s: %v", addr, err)
	}
	c := &TelnetClient{t: t, conn: conn}
	t.Cleanup(func() { _ = conn.Close() })
	return c
}

// Send writes a line followed by CRLF.
func (c *TelnetClient) Send(line string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.conn.Write([]byte(line + "\r\n")); err != nil {
		c.t.Fatalf("sending %q: %v", line, err)
	}
}

// ReadUntil reads from the connection until the accumulated output
// contains marker, then returns everything read so far. Bytes received
// past the marker are also kept for the next call, so output batched
// into one TCP segment is never lost. Telnet IAC command bytes are
// stripped before matching.
func (c *TelnetClient) ReadUntil(marker string) string {
	c.t.Helper()
	data := c.pending
	c.pending = nil
	deadline := time.Now().Add(5 * time.Second)
	buf := make([]byte, 1024)
	for {
		if idx := strings.Index(string(data), marker); idx >= 0 {
			end := idx + len(marker)
			c.pending = append([]byte(nil), data[end:]...)
			return string(data)
		}
		_ = c.conn.SetReadDeadline(deadline)
		n, err := c.conn.Read(buf)
		if n > 0 {
			data = append(data, stripIAC(buf[:n])...)
			continue
		}
		if err != nil {
			c.t.Fatalf("waiting for %q, got so far %q: %v", marker, string(data), err)
		}
		if time.Now().After(deadline) {
			c.t.Fatalf("timed out waiting for %q, got %q", marker, string(data))
		}
	}
}

// Close closes the underlying connection.
func (c *TelnetClient) Close() {
	_ = c.conn.Close()
}

// stripIAC removes telnet IAC command sequences from raw bytes.
func stripIAC(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == 255 && i+2 < len(data) {
			i += 2
			continue
		}
		out = append(out, data[i])
	}
	return out
}

// WaitForPrompt reads until the "> " game prompt appears.
func (c *TelnetClient) WaitForPrompt() string {
	c.t.Helper()
	return c.ReadUntil("> ")
}
