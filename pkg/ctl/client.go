package ctl

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"
)

// Client talks to the daemon's control socket. Each call is one
// request/response datagram exchange.
type Client struct {
	conn    *net.UnixConn
	timeout time.Duration
}

// NewClient connects to the daemon. Datagram sockets need a bound
// local address to receive the reply; an abstract-namespace address
// keyed by pid avoids filesystem litter.
func NewClient(path string) (*Client, error) {
	local := &net.UnixAddr{
		Name: fmt.Sprintf("@gomstpctl.%d", os.Getpid()),
		Net:  "unixgram",
	}
	remote := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.DialUnix("unixgram", local, remote)
	if err != nil {
		return nil, fmt.Errorf("control socket connect: %w", err)
	}
	return &Client{conn: conn, timeout: 3 * time.Second}, nil
}

// Call issues one command and unmarshals the result blob into out
// (which may be nil for commands without a result).
func (c *Client) Call(cmd Command, args, out any) error {
	req, err := EncodeRequest(cmd, args)
	if err != nil {
		return err
	}
	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	if _, err := c.conn.Write(req); err != nil {
		return fmt.Errorf("control request: %w", err)
	}
	buf := make([]byte, headerLen+maxBlobLen)
	n, err := c.conn.Read(buf)
	if err != nil {
		return fmt.Errorf("control response: %w", err)
	}
	resp, err := DecodeResponse(buf[:n])
	if err != nil {
		return err
	}
	if resp.Status != StatusOK {
		return fmt.Errorf("%s", StatusText(resp.Status))
	}
	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("unmarshal control result: %w", err)
		}
	}
	return nil
}

// Close releases the client socket.
func (c *Client) Close() error {
	return c.conn.Close()
}
