package ftp

import "io"

// ProgressReader wraps an io.Reader and reports progress via a callback.
// Sessions use it for downloads when WithProgress is set.
type ProgressReader struct {
	// Reader is the underlying reader
	Reader io.Reader

	// Callback is called after each Read with the total bytes transferred
	Callback func(bytesTransferred int64)

	total int64
}

// Read implements io.Reader.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.total += int64(n)
		if pr.Callback != nil {
			pr.Callback(pr.total)
		}
	}
	return n, err
}

// ProgressWriter wraps an io.Writer and reports progress via a callback.
// Sessions use it for uploads when WithProgress is set.
type ProgressWriter struct {
	// Writer is the underlying writer
	Writer io.Writer

	// Callback is called after each Write with the total bytes transferred
	Callback func(bytesTransferred int64)

	total int64
}

// Write implements io.Writer.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	if n > 0 {
		pw.total += int64(n)
		if pw.Callback != nil {
			pw.Callback(pw.total)
		}
	}
	return n, err
}
