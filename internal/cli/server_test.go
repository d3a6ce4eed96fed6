package cli

import (
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeServer is a small in-memory FTP server accepting any number of
// sessions, enough to drive the CLI end to end.
type fakeServer struct {
	listener net.Listener
	port     int

	mu     sync.Mutex
	files  map[string][]byte
	logins []string

	wg sync.WaitGroup
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	fs := &fakeServer{
		listener: l,
		port:     l.Addr().(*net.TCPAddr).Port,
		files:    make(map[string][]byte),
	}
	fs.wg.Add(1)
	go fs.serve()
	t.Cleanup(func() {
		l.Close()
		fs.wg.Wait()
	})
	return fs
}

func (fs *fakeServer) serve() {
	defer fs.wg.Done()
	for {
		conn, err := fs.listener.Accept()
		if err != nil {
			return
		}
		fs.wg.Add(1)
		go func() {
			defer fs.wg.Done()
			fs.handle(conn)
		}()
	}
}

func (fs *fakeServer) handle(conn net.Conn) {
	defer conn.Close()
	c := textproto.NewConn(conn)
	_ = c.PrintfLine("220 fake server ready")

	var (
		user string
		data net.Listener
	)
	defer func() {
		if data != nil {
			data.Close()
		}
	}()

	accept := func() net.Conn {
		if data == nil {
			return nil
		}
		dc, err := data.Accept()
		if err != nil {
			return nil
		}
		return dc
	}

	for {
		line, err := c.ReadLine()
		if err != nil {
			return
		}
		cmd, arg, _ := strings.Cut(line, " ")

		switch strings.ToUpper(cmd) {
		case "USER":
			user = arg
			_ = c.PrintfLine("331 password please")
		case "PASS":
			if arg == "wrong" {
				_ = c.PrintfLine("530 Login incorrect.")
				continue
			}
			fs.mu.Lock()
			fs.logins = append(fs.logins, user+":"+arg)
			fs.mu.Unlock()
			_ = c.PrintfLine("230 logged in")
		case "TYPE":
			_ = c.PrintfLine("200 type set")
		case "EPSV":
			if data != nil {
				data.Close()
			}
			data, err = net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				_ = c.PrintfLine("425 no data port")
				continue
			}
			_ = c.PrintfLine("229 Entering Extended Passive Mode (|||%d|)", data.Addr().(*net.TCPAddr).Port)
		case "SIZE":
			content, ok := fs.file(arg)
			if !ok {
				_ = c.PrintfLine("550 no such file")
				continue
			}
			_ = c.PrintfLine("213 %d", len(content))
		case "RETR":
			content, ok := fs.file(arg)
			if !ok {
				_ = c.PrintfLine("550 no such file")
				continue
			}
			_ = c.PrintfLine("150 sending")
			dc := accept()
			if dc == nil {
				_ = c.PrintfLine("425 no data connection")
				continue
			}
			_, _ = dc.Write(content)
			_, _ = io.Copy(io.Discard, dc)
			dc.Close()
			_ = c.PrintfLine("226 done")
		case "STOR":
			_ = c.PrintfLine("150 receiving")
			dc := accept()
			if dc == nil {
				_ = c.PrintfLine("425 no data connection")
				continue
			}
			content, err := io.ReadAll(dc)
			dc.Close()
			if err != nil {
				_ = c.PrintfLine("426 aborted")
				continue
			}
			fs.mu.Lock()
			fs.files[arg] = content
			fs.mu.Unlock()
			_ = c.PrintfLine("226 done")
		case "QUIT":
			_ = c.PrintfLine("221 bye")
			return
		default:
			_ = c.PrintfLine("502 %s not implemented", cmd)
		}
	}
}

func (fs *fakeServer) file(path string) ([]byte, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	content, ok := fs.files[path]
	return content, ok
}

func (fs *fakeServer) put(path string, content []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = content
}

func (fs *fakeServer) seenLogins() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.logins...)
}

func (fs *fakeServer) portArg() string {
	return fmt.Sprint(fs.port)
}
