// Package ftp implements a minimal FTP client session for downloading and
// uploading single files in binary mode over passive (EPSV) data connections.
//
// # Overview
//
// A Session owns one control connection and at most one data connection.
// It supports:
//   - Login with USER/PASS after the 220 greeting
//   - Whole-file download (TYPE I, EPSV, SIZE, RETR) and upload (TYPE I, EPSV, STOR)
//   - A raw command vocabulary for driving the protocol step by step
//   - Structured debug logging with log/slog, with passwords masked
//   - Optional bandwidth limiting, progress callbacks and metrics
//
// # Basic Usage
//
//	s, err := ftp.New(ftp.WithTimeout(10 * time.Second))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.Connect("ftp.example.com", 21, "anonymous", "anonymous@"); err != nil {
//	    log.Fatal(err)
//	}
//
//	data, err := s.Download("/pub/readme.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := s.Upload("/incoming/copy.txt", data); err != nil {
//	    log.Fatal(err)
//	}
//
//	_ = s.Quit()
//
// # Reply Framing
//
// Replies are collected by a background goroutine reading the control
// connection. By default (FramePerRead) everything completed by one network
// read is handed to the waiting command as one reply, which matches servers
// that answer each command with a single write. WithReplyFraming(FramePerReply)
// groups lines into logical replies using the "ddd-" continuation convention
// instead, so replies split or coalesced by the network are still separated
// correctly.
//
// # Raw Commands
//
// The same steps used by Download can be issued one at a time:
//
//	reply, _ := s.Epsv()
//	port, ok := reply.DataPort()
//	if !ok {
//	    return ftp.ErrMissingDataPort
//	}
//	if err := s.OpenDataConn(port); err != nil {
//	    return err
//	}
//	reply, _ = s.Stor("/incoming/file.bin")
//	if err := ftp.Verify("STOR", reply, 125, 150); err != nil {
//	    return err
//	}
//	if _, err := s.WriteData(payload); err != nil {
//	    return err
//	}
//	reply, _ = s.ReadReply()
//	return ftp.Verify("DATA_TRANSFER", reply, 226)
//
// # Error Handling
//
// A reply with an unexpected code is reported as *UnexpectedReplyError,
// which carries the command, the acceptable codes and the full reply:
//
//	if _, err := s.Download("file.txt"); err != nil {
//	    var ue *ftp.UnexpectedReplyError
//	    if errors.As(err, &ue) && ue.IsTemporary() {
//	        // retry later
//	    }
//	}
//
// Other failures wrap one of the package's sentinel errors (for example
// ErrNotConnected, ErrConnectionClosed or ErrReplyTimeout) and can be
// matched with errors.Is.
package ftp
