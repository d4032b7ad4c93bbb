package telnet

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFilterIAC_NoIAC(t *testing.T) {
	input := []byte("hello world")
	result := FilterIAC(input)
	assert.Equal(t, input, result)
}

func TestFilterIAC_WillCommand(t *testing.T) {
	input := []byte{IAC, WILL, OptEcho, 'h', 'i'}
	result := FilterIAC(input)
	assert.Equal(t, []byte("hi"), result)
}

func TestFilterIAC_SubNegotiation(t *testing.T) {
	input := []byte{IAC, SB, 24, 0, 'x', 't', 'e', 'r', 'm', IAC, SE, 'z'}
	result := FilterIAC(input)
	assert.Equal(t, []byte("z"), result)
}

func TestFilterIAC_EscapedIAC(t *testing.T) {
	input := []byte{'a', IAC, IAC, 'b'}
	result := FilterIAC(input)
	assert.Equal(t, []byte{byte('a'), IAC, byte('b')}, result)
}

func TestFilterIAC_NOP(t *testing.T) {
	input := []byte{'x', IAC, NOP, 'y'}
	result := FilterIAC(input)
	assert.Equal(t, []byte("xy"), result)
}

// Property: FilterIAC on input without any IAC bytes returns the input unchanged.
func TestPropertyFilterIAC_NoIACBytesPassThrough(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		length := rapid.IntRange(0, 200).Draw(t, "length")
		input := make([]byte, length)
		for i := range input {
			input[i] = byte(rapid.IntRange(0, 254).Draw(t, "byte"))
		}
		result := FilterIAC(input)
		assert.Equal(t, input, result, "input without IAC bytes should pass through unchanged")
	})
}

// pipeConn returns a Conn backed by one end of a net.Pipe plus the peer end.
func pipeConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return NewConn(server, 0, 0), client
}

func TestConnReadLine_CRLF(t *testing.T) {
	conn, peer := pipeConn(t)

	go func() {
		_, _ = peer.Write([]byte("look\r\n"))
	}()

	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "look", line)
}

func TestConnReadLine_BareLF(t *testing.T) {
	conn, peer := pipeConn(t)

	go func() {
		_, _ = peer.Write([]byte("who\n"))
	}()

	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "who", line)
}

func TestConnReadLine_FiltersIAC(t *testing.T) {
	conn, peer := pipeConn(t)

	go func() {
		_, _ = peer.Write([]byte{IAC, DO, OptSuppressGoAhead, 's', 'a', 'y', '\r', '\n'})
	}()

	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "say", line)
}

func TestConnReadLine_EOF(t *testing.T) {
	conn, peer := pipeConn(t)

	go func() {
		peer.Close()
	}()

	_, err := conn.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestConnWriteLine_CRLFTerminated(t *testing.T) {
	conn, peer := pipeConn(t)

	go func() {
		_ = conn.WriteLine("Goodbye! Your progress has been saved.")
	}()

	reader := bufio.NewReader(peer)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "Goodbye! Your progress has been saved.\r\n", line)
}

func TestConnWriteLine_MultiLine(t *testing.T) {
	conn, peer := pipeConn(t)

	go func() {
		_ = conn.WriteLine("The Alamo Plaza\nExits: east, south")
	}()

	reader := bufio.NewReader(peer)
	first, err := reader.ReadString('\n')
	require.NoError(t, err)
	second, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "The Alamo Plaza\r\n", first)
	assert.Equal(t, "Exits: east, south\r\n", second)
}

func TestConnWritePrompt_NoNewline(t *testing.T) {
	conn, peer := pipeConn(t)

	go func() {
		_ = conn.WritePrompt("> ")
		conn.Close()
	}()

	_ = peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, _ := io.ReadAll(peer)
	assert.Equal(t, "> ", string(data))
}

func TestConnReadPassword_EchoControl(t *testing.T) {
	conn, peer := pipeConn(t)

	done := make(chan struct{})
	var pw string
	var pwErr error
	go func() {
		defer close(done)
		pw, pwErr = conn.ReadPassword()
	}()

	reader := bufio.NewReader(peer)

	// Server suppresses echo before reading
	prefix := make([]byte, 3)
	_, err := io.ReadFull(reader, prefix)
	require.NoError(t, err)
	assert.Equal(t, []byte{IAC, WILL, OptEcho}, prefix)

	_, err = peer.Write([]byte("hunter2\r\n"))
	require.NoError(t, err)

	// Echo restored plus a cursor-advancing blank line
	suffix := make([]byte, 5)
	_, err = io.ReadFull(reader, suffix)
	require.NoError(t, err)
	assert.Equal(t, []byte{IAC, WONT, OptEcho, '\r', '\n'}, suffix)

	<-done
	require.NoError(t, pwErr)
	assert.Equal(t, "hunter2", pw)
}
