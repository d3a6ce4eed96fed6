package ftp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReply_Code(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		lines     []string
		wantCode  int
		wantValid bool
	}{
		{
			name:      "simple success",
			lines:     []string{"220 Welcome"},
			wantCode:  220,
			wantValid: true,
		},
		{
			name:      "code without message",
			lines:     []string{"200"},
			wantCode:  200,
			wantValid: true,
		},
		{
			name: "multi-line reply takes the last code",
			lines: []string{
				"220-Welcome to FTP",
				"220-This is line 2",
				"220 Ready",
			},
			wantCode:  220,
			wantValid: true,
		},
		{
			name:      "merged replies take the last code",
			lines:     []string{"150 Opening data connection", "226 Transfer complete"},
			wantCode:  226,
			wantValid: true,
		},
		{
			name:      "text lines without code are ignored",
			lines:     []string{"230 Login ok", " some banner text"},
			wantCode:  230,
			wantValid: true,
		},
		{
			name:      "no line carries a code",
			lines:     []string{"hello", "ab"},
			wantCode:  0,
			wantValid: false,
		},
		{
			name:      "partial digits are not a code",
			lines:     []string{"22 Welcome"},
			wantCode:  0,
			wantValid: false,
		},
		{
			name:      "empty line",
			lines:     []string{""},
			wantCode:  0,
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reply, err := ParseReply(tt.lines)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, reply.Code)
			assert.Equal(t, tt.wantValid, reply.HasCode())
			assert.Equal(t, tt.lines, reply.Lines)

			again, err := ParseReply(tt.lines)
			require.NoError(t, err)
			assert.Equal(t, reply, again, "parsing must be idempotent")
		})
	}
}

func TestParseReply_InvalidInput(t *testing.T) {
	t.Parallel()

	_, err := ParseReply(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseReply([]string{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseReply_CopiesLines(t *testing.T) {
	t.Parallel()
	lines := []string{"200 OK"}
	reply, err := ParseReply(lines)
	require.NoError(t, err)

	lines[0] = "500 changed"
	assert.Equal(t, "200 OK", reply.Lines[0])
}

func TestParseReply_FileLength(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		line       string
		wantLength int64
		wantOK     bool
	}{
		{"exact form", "213 1024", 1024, true},
		{"zero length", "213 0", 0, true},
		{"trailing space", "213 77 ", 77, true},
		{"large file", "213 5368709120", 5368709120, true},
		{"no space", "213", 0, false},
		{"not numeric", "213 abc", 0, false},
		{"negative", "213 -5", 0, false},
		{"extra words", "213 12 bytes", 0, false},
		{"other code", "200 1024", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reply, err := ParseReply([]string{tt.line})
			require.NoError(t, err)

			length, ok := reply.FileLength()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantLength, length)

			_, hasPort := reply.DataPort()
			assert.False(t, hasPort)
		})
	}
}

func TestParseReply_DataPort(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		line     string
		wantPort int
		wantOK   bool
	}{
		{"standard EPSV reply", "229 Entering Extended Passive Mode (|||6000|)", 6000, true},
		{"EPSV with other text", "229 Extended Passive Mode OK (|||12345|)", 12345, true},
		{"highest port", "229 (|||65535|)", 65535, true},
		{"missing prefix", "229 Entering Extended Passive Mode (||6000|)", 0, false},
		{"missing closing delimiter", "229 Entering Extended Passive Mode (|||6000)", 0, false},
		{"not numeric", "229 Entering Extended Passive Mode (|||port|)", 0, false},
		{"empty port", "229 Entering Extended Passive Mode (||||)", 0, false},
		{"port zero", "229 (|||0|)", 0, false},
		{"port out of range", "229 (|||70000|)", 0, false},
		{"other code", "227 (|||6000|)", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reply, err := ParseReply([]string{tt.line})
			require.NoError(t, err)

			port, ok := reply.DataPort()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}

func TestParseReply_PayloadFromCodeLine(t *testing.T) {
	t.Parallel()
	reply, err := ParseReply([]string{
		"213-Status follows",
		"213 2048",
	})
	require.NoError(t, err)

	length, ok := reply.FileLength()
	assert.True(t, ok)
	assert.Equal(t, int64(2048), length)
}

func TestReply_String(t *testing.T) {
	t.Parallel()
	reply, err := ParseReply([]string{"220-Welcome ", "220 Ready  "})
	require.NoError(t, err)
	assert.Equal(t, "220-Welcome \n220 Ready", reply.String())
}

func TestReply_CodeChecks(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code  int
		is1xx bool
		is2xx bool
		is3xx bool
		is4xx bool
		is5xx bool
	}{
		{150, true, false, false, false, false},
		{220, false, true, false, false, false},
		{331, false, false, true, false, false},
		{421, false, false, false, true, false},
		{550, false, false, false, false, true},
	}

	for _, tt := range tests {
		r := &Reply{Code: tt.code}
		assert.Equal(t, tt.is1xx, r.Is1xx(), "Reply{%d}.Is1xx()", tt.code)
		assert.Equal(t, tt.is2xx, r.Is2xx(), "Reply{%d}.Is2xx()", tt.code)
		assert.Equal(t, tt.is3xx, r.Is3xx(), "Reply{%d}.Is3xx()", tt.code)
		assert.Equal(t, tt.is4xx, r.Is4xx(), "Reply{%d}.Is4xx()", tt.code)
		assert.Equal(t, tt.is5xx, r.Is5xx(), "Reply{%d}.Is5xx()", tt.code)
	}
}

func FuzzParseReply(f *testing.F) {
	f.Add("220 Welcome")
	f.Add("213 1024")
	f.Add("229 Entering Extended Passive Mode (|||6000|)")
	f.Add("229 (|||")
	f.Add("21")

	f.Fuzz(func(t *testing.T, line string) {
		reply, err := ParseReply([]string{line})
		if err != nil {
			t.Fatalf("ParseReply(%q) failed: %v", line, err)
		}
		if port, ok := reply.DataPort(); ok && (port <= 0 || port > 65535) {
			t.Errorf("ParseReply(%q) port out of range: %d", line, port)
		}
		if length, ok := reply.FileLength(); ok && length < 0 {
			t.Errorf("ParseReply(%q) negative length: %d", line, length)
		}
	})
}
