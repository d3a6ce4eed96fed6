package ftp

import (
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type mockHandler func(c *textproto.Conn, args string)

// mockServer scripts the server side of one control connection. Commands
// without a handler get a default answer backed by an in-memory file table.
type mockServer struct {
	t        *testing.T
	listener net.Listener
	host     string
	port     int

	// greeting chunks are written one by one, with a short pause between
	// them, as soon as the client connects.
	greeting []string

	// handlers override the default answer for a command
	handlers map[string]mockHandler

	// dataListener accepts the data connections announced by EPSV
	dataListener net.Listener
	dataPort     int

	mu       sync.Mutex
	conn     net.Conn
	received []string
	files    map[string][]byte

	started bool
	done    chan struct{}
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dl, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ms := &mockServer{
		t:            t,
		listener:     l,
		host:         "127.0.0.1",
		port:         l.Addr().(*net.TCPAddr).Port,
		greeting:     []string{"220 Service ready\r\n"},
		handlers:     make(map[string]mockHandler),
		dataListener: dl,
		dataPort:     dl.Addr().(*net.TCPAddr).Port,
		files:        make(map[string][]byte),
		done:         make(chan struct{}),
	}
	t.Cleanup(ms.stop)
	return ms
}

func (ms *mockServer) start() {
	ms.started = true
	go func() {
		defer close(ms.done)
		conn, err := ms.listener.Accept()
		if err != nil {
			return
		}
		ms.mu.Lock()
		ms.conn = conn
		ms.mu.Unlock()
		defer conn.Close()

		for i, chunk := range ms.greeting {
			if i > 0 {
				time.Sleep(50 * time.Millisecond)
			}
			if _, err := io.WriteString(conn, chunk); err != nil {
				return
			}
		}

		textConn := textproto.NewConn(conn)
		for {
			line, err := textConn.ReadLine()
			if err != nil {
				return
			}

			cmd, args, _ := strings.Cut(line, " ")
			cmd = strings.ToUpper(cmd)

			ms.mu.Lock()
			ms.received = append(ms.received, line)
			ms.mu.Unlock()

			if handler, ok := ms.handlers[cmd]; ok {
				handler(textConn, args)
				continue
			}
			if cmd == "QUIT" {
				_ = textConn.PrintfLine("221 Service closing control connection.")
				return
			}
			ms.defaultHandler(textConn, cmd, args)
		}
	}()
}

func (ms *mockServer) defaultHandler(c *textproto.Conn, cmd, args string) {
	switch cmd {
	case "USER":
		_ = c.PrintfLine("331 User name okay, need password.")
	case "PASS":
		_ = c.PrintfLine("230 User logged in, proceed.")
	case "TYPE":
		_ = c.PrintfLine("200 Command okay.")
	case "EPSV":
		_ = c.PrintfLine("%s", ms.epsvReply())
	case "SIZE":
		data, ok := ms.file(args)
		if !ok {
			_ = c.PrintfLine("550 %s: No such file.", args)
			return
		}
		_ = c.PrintfLine("213 %d", len(data))
	case "RETR":
		data, ok := ms.file(args)
		if !ok {
			_ = c.PrintfLine("550 %s: No such file.", args)
			return
		}
		_ = c.PrintfLine("150 Opening BINARY mode data connection.")
		dconn := ms.acceptData()
		if dconn == nil {
			_ = c.PrintfLine("425 Can't open data connection.")
			return
		}
		_, _ = dconn.Write(data)
		// The completion reply only goes out once the client has
		// released its end of the data connection.
		_, _ = io.Copy(io.Discard, dconn)
		dconn.Close()
		_ = c.PrintfLine("226 Transfer complete.")
	case "STOR":
		_ = c.PrintfLine("150 Ok to send data.")
		dconn := ms.acceptData()
		if dconn == nil {
			_ = c.PrintfLine("425 Can't open data connection.")
			return
		}
		data, err := io.ReadAll(dconn)
		dconn.Close()
		if err != nil {
			_ = c.PrintfLine("426 Connection closed; transfer aborted.")
			return
		}
		ms.mu.Lock()
		ms.files[args] = data
		ms.mu.Unlock()
		_ = c.PrintfLine("226 Transfer complete.")
	default:
		_ = c.PrintfLine("502 Command not implemented.")
	}
}

// acceptData accepts the next data connection, or returns nil if the
// client does not connect in time.
func (ms *mockServer) acceptData() net.Conn {
	_ = ms.dataListener.(*net.TCPListener).SetDeadline(time.Now().Add(5 * time.Second))
	conn, err := ms.dataListener.Accept()
	if err != nil {
		ms.t.Errorf("mock server failed to accept data connection: %v", err)
		return nil
	}
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn
}

// hangup drops the control connection.
func (ms *mockServer) hangup() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.conn != nil {
		ms.conn.Close()
	}
}

func (ms *mockServer) putFile(path string, data []byte) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.files[path] = data
}

func (ms *mockServer) file(path string) ([]byte, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	data, ok := ms.files[path]
	return data, ok
}

func (ms *mockServer) commands() []string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]string(nil), ms.received...)
}

func (ms *mockServer) stop() {
	ms.listener.Close()
	ms.dataListener.Close()
	ms.hangup()
	if ms.started {
		<-ms.done
	}
}

func (ms *mockServer) epsvReply() string {
	return fmt.Sprintf("229 Entering Extended Passive Mode (|||%d|)", ms.dataPort)
}

// connectSession starts ms and returns a session logged in to it.
func connectSession(t *testing.T, ms *mockServer, opts ...Option) *Session {
	t.Helper()
	ms.start()

	s, err := New(append([]Option{WithTimeout(2 * time.Second)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Connect(ms.host, ms.port, "anonymous", "secret"))
	return s
}
