package ftp

import (
	"strconv"
	"strings"
)

// Reply is one batch of reply lines received on the control connection,
// together with the fields this client extracts from it.
//
// A Reply is never modified after ParseReply returns it.
type Reply struct {
	// Code is the three-digit reply code (e.g., 220, 229, 550).
	// It is 0 when no line of the batch starts with three digits.
	Code int

	// Lines contains the raw lines in arrival order, without CRLF.
	Lines []string

	hasCode       bool
	dataPort      int
	hasDataPort   bool
	fileLength    int64
	hasFileLength bool
}

// ParseReply interprets a batch of reply lines.
//
// The code is taken from the last line that starts with three ASCII
// digits. For 213 replies the file length is extracted, for 229 replies
// the data port. Malformed payloads leave those fields unset; ParseReply
// only fails when lines is empty.
func ParseReply(lines []string) (*Reply, error) {
	if len(lines) == 0 {
		return nil, ErrInvalidInput
	}

	r := &Reply{Lines: append([]string(nil), lines...)}

	var codeLine string
	for _, line := range lines {
		if code, ok := parseCode(line); ok {
			r.Code = code
			r.hasCode = true
			codeLine = line
		}
	}

	switch r.Code {
	case 213:
		r.fileLength, r.hasFileLength = parseFileLength(codeLine)
	case 229:
		r.dataPort, r.hasDataPort = parseDataPort(codeLine)
	}

	return r, nil
}

// parseCode reads the first three bytes of line as a decimal reply code.
func parseCode(line string) (int, bool) {
	if len(line) < 3 {
		return 0, false
	}
	code := 0
	for i := range 3 {
		c := line[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		code = code*10 + int(c-'0')
	}
	return code, true
}

// parseFileLength parses a SIZE reply: "213 <length>".
func parseFileLength(line string) (int64, bool) {
	idx := strings.IndexByte(line, ' ')
	if idx < 0 {
		return 0, false
	}

	n, err := strconv.ParseUint(strings.TrimSpace(line[idx+1:]), 10, 63)
	if err != nil {
		return 0, false
	}
	return int64(n), true
}

// parseDataPort parses an EPSV reply.
// Example: "229 Entering Extended Passive Mode (|||6446|)"
// Returns: 6446
func parseDataPort(line string) (int, bool) {
	start := strings.Index(line, "|||")
	if start < 0 {
		return 0, false
	}
	start += 3

	end := strings.IndexByte(line[start:], '|')
	if end < 0 {
		return 0, false
	}

	port, err := strconv.ParseUint(line[start:start+end], 10, 16)
	if err != nil || port == 0 {
		return 0, false
	}
	return int(port), true
}

// HasCode reports whether any line of the reply carried a reply code.
func (r *Reply) HasCode() bool {
	return r.hasCode
}

// DataPort returns the port announced by a 229 reply.
func (r *Reply) DataPort() (int, bool) {
	return r.dataPort, r.hasDataPort
}

// FileLength returns the size reported by a 213 reply.
func (r *Reply) FileLength() (int64, bool) {
	return r.fileLength, r.hasFileLength
}

// Is1xx returns true if the reply code is in the 1xx range (preliminary).
func (r *Reply) Is1xx() bool {
	return r.Code >= 100 && r.Code < 200
}

// Is2xx returns true if the reply code is in the 2xx range (success).
func (r *Reply) Is2xx() bool {
	return r.Code >= 200 && r.Code < 300
}

// Is3xx returns true if the reply code is in the 3xx range (intermediate).
func (r *Reply) Is3xx() bool {
	return r.Code >= 300 && r.Code < 400
}

// Is4xx returns true if the reply code is in the 4xx range (temporary failure).
func (r *Reply) Is4xx() bool {
	return r.Code >= 400 && r.Code < 500
}

// Is5xx returns true if the reply code is in the 5xx range (permanent failure).
func (r *Reply) Is5xx() bool {
	return r.Code >= 500 && r.Code < 600
}

// String returns all lines of the reply, newline separated and trimmed.
func (r *Reply) String() string {
	return strings.TrimSpace(strings.Join(r.Lines, "\n"))
}
