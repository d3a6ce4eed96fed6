package ftp

import (
	"fmt"
	"time"
)

// Download retrieves remotePath in binary mode and returns its content.
//
// The sequence is TYPE I (200), EPSV (229), data connection to the
// announced port, SIZE (213), RETR (125 or 150), read exactly the announced
// number of bytes, close the data connection, completion reply (226). The
// first unexpected reply aborts the download; the data connection is closed
// on every path. A truncated buffer is never returned.
//
// Example:
//
//	data, err := s.Download("/pub/readme.txt")
//	if err != nil {
//	    var ue *ftp.UnexpectedReplyError
//	    if errors.As(err, &ue) {
//	        fmt.Printf("server said %d: %s\n", ue.Code(), ue.Response())
//	    }
//	    return err
//	}
func (s *Session) Download(remotePath string) ([]byte, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.requireReady(); err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := s.download(remotePath)
	if err != nil {
		s.logger.Debug("download failed", "path", remotePath, "error", err)
		return nil, err
	}

	s.recordTransfer("RETR", int64(len(data)), start)
	return data, nil
}

func (s *Session) download(remotePath string) ([]byte, error) {
	defer s.endTransfer()

	if err := s.enterPassive(); err != nil {
		return nil, err
	}

	reply, err := s.expect("SIZE", codes(213), remotePath)
	if err != nil {
		return nil, err
	}
	length, ok := reply.FileLength()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingFileLength, reply)
	}
	if s.maxDownload > 0 && length > s.maxDownload {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrDownloadTooLarge, length, s.maxDownload)
	}

	if _, err := s.expect("RETR", codes(125, 150), remotePath); err != nil {
		return nil, err
	}
	s.advance(StateTransferring)

	data, err := s.readAndClose(length)
	if err != nil {
		return nil, err
	}

	if _, err := s.awaitReply("DATA_TRANSFER", 226); err != nil {
		return nil, err
	}

	s.logger.Debug("ftp data transfer complete", "op", "RETR", "path", remotePath, "bytes", len(data))
	return data, nil
}

// Upload stores data at remotePath in binary mode and returns the number
// of bytes written.
//
// The sequence is TYPE I (200), EPSV (229), data connection to the
// announced port, STOR (125 or 150), write all bytes, close the data
// connection, completion reply (226). On any error the returned count is
// zero, even when the bytes reached the server before a failing reply.
func (s *Session) Upload(remotePath string, data []byte) (int, error) {
	release, err := s.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	if err := s.requireReady(); err != nil {
		return 0, err
	}

	start := time.Now()
	n, err := s.upload(remotePath, data)
	if err != nil {
		s.logger.Debug("upload failed", "path", remotePath, "error", err)
		return 0, err
	}

	s.recordTransfer("STOR", int64(n), start)
	return n, nil
}

func (s *Session) upload(remotePath string, data []byte) (int, error) {
	defer s.endTransfer()

	if err := s.enterPassive(); err != nil {
		return 0, err
	}

	if _, err := s.expect("STOR", codes(125, 150), remotePath); err != nil {
		return 0, err
	}
	s.advance(StateTransferring)

	n, err := s.writeAndClose(data)
	if err != nil {
		return 0, err
	}

	if _, err := s.awaitReply("DATA_TRANSFER", 226); err != nil {
		return 0, err
	}

	s.logger.Debug("ftp data transfer complete", "op", "STOR", "path", remotePath, "bytes", n)
	return n, nil
}

// enterPassive switches to binary mode, asks for an extended passive port
// and opens the data connection to it.
func (s *Session) enterPassive() error {
	if _, err := s.expect("TYPE", codes(200), "I"); err != nil {
		return err
	}

	reply, err := s.expect("EPSV", codes(229))
	if err != nil {
		return err
	}
	port, ok := reply.DataPort()
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingDataPort, reply)
	}

	s.advance(StateDataChannelPending)
	return s.openDataConn(port)
}

// endTransfer releases the data connection and returns to Ready.
func (s *Session) endTransfer() {
	if err := s.closeDataConn(); err != nil {
		s.logger.Debug("failed to close data connection", "error", err)
	}
	s.advance(StateReady)
}

func (s *Session) recordTransfer(operation string, bytes int64, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordTransfer(operation, bytes, time.Since(start))
	}
}
