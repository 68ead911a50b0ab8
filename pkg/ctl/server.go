package ctl

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Server reads control requests off the unix datagram socket and
// hands them to the dispatch function, which the daemon runs on the
// core event loop. One request is fully applied before the next is
// read.
type Server struct {
	conn     *net.UnixConn
	path     string
	dispatch func(Request) Response
	log      *logrus.Logger
	wg       sync.WaitGroup
	closed   chan struct{}
}

// NewServer binds the control socket. The parent directory is created
// with root-only permissions; the socket itself is 0600, the control
// surface performs no further authentication.
func NewServer(path string, dispatch func(Request) Response, log *logrus.Logger) (*Server, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("control socket dir: %w", err)
	}
	// A stale socket from a previous run blocks the bind.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale control socket: %w", err)
	}
	addr := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("control socket listen: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		conn.Close()
		return nil, fmt.Errorf("control socket chmod: %w", err)
	}
	s := &Server{
		conn:     conn,
		path:     path,
		dispatch: dispatch,
		log:      log,
		closed:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	defer s.wg.Done()
	buf := make([]byte, headerLen+maxBlobLen)
	for {
		n, from, err := s.conn.ReadFromUnix(buf)
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			s.log.WithError(err).Error("control socket read failed")
			return
		}
		req, err := DecodeRequest(buf[:n])
		if err != nil {
			s.log.WithError(err).Debug("malformed control request dropped")
			s.reply(from, Response{Status: StatusBadArgument})
			continue
		}
		s.reply(from, s.dispatch(req))
	}
}

func (s *Server) reply(to *net.UnixAddr, resp Response) {
	if to == nil {
		return
	}
	if _, err := s.conn.WriteToUnix(EncodeRawResponse(resp.Status, resp.Data), to); err != nil {
		s.log.WithError(err).Debug("control reply failed")
	}
}

// Close shuts the control socket down and removes it.
func (s *Server) Close() {
	close(s.closed)
	s.conn.Close()
	s.wg.Wait()
	os.Remove(s.path)
}
