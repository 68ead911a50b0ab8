//go:build linux
// +build linux

package packet

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// RxFrame is one received BPDU handed to the core: the arrival
// ifindex and the naked payload.
type RxFrame struct {
	Ifindex int
	Payload []byte
}

// Socket owns the PF_PACKET socket all managed ports share. BPDUs
// are received in a dedicated goroutine and handed to the event loop
// over a channel; transmission happens inline from the core.
type Socket struct {
	fd     int
	rxCh   chan RxFrame
	log    *logrus.Logger
	wg     sync.WaitGroup
	closed chan struct{}
}

// htons converts a short to network byte order for sockaddr_ll.
func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

// NewSocket opens a PF_PACKET socket bound to all 802.2 frames. Like
// mstpd we take every LLC frame and filter to the bridge group
// address in userspace.
func NewSocket(log *logrus.Logger) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(htons(unix.ETH_P_802_2)))
	if err != nil {
		return nil, fmt.Errorf("packet socket: %w", err)
	}
	sll := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_802_2),
	}
	if err := unix.Bind(fd, sll); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("packet socket bind: %w", err)
	}
	s := &Socket{
		fd:     fd,
		rxCh:   make(chan RxFrame, 256),
		log:    log,
		closed: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.rxLoop()
	return s, nil
}

// Frames is the channel received BPDUs arrive on.
func (s *Socket) Frames() <-chan RxFrame {
	return s.rxCh
}

func (s *Socket) rxLoop() {
	defer s.wg.Done()
	buf := make([]byte, 2048)
	for {
		n, from, err := unix.Recvfrom(s.fd, buf, 0)
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			if err == unix.EINTR {
				continue
			}
			s.log.WithError(err).Error("packet receive failed")
			return
		}
		sll, ok := from.(*unix.SockaddrLinklayer)
		if !ok || sll.Pkttype == unix.PACKET_OUTGOING {
			continue
		}
		payload, err := ExtractBPDU(buf[:n])
		if err != nil {
			continue
		}
		frame := RxFrame{
			Ifindex: sll.Ifindex,
			Payload: append([]byte(nil), payload...),
		}
		select {
		case s.rxCh <- frame:
		case <-s.closed:
			return
		}
	}
}

// SendBPDU transmits a BPDU payload out of the given port. The source
// address is the port's own MAC, resolved by the caller into the
// frame; here we only need the ifindex for the destination sockaddr.
func (s *Socket) SendBPDU(ifindex int, frame []byte) {
	sll := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_802_2),
		Ifindex:  ifindex,
		Halen:    6,
	}
	copy(sll.Addr[:], BPDUGroupAddress)
	if err := unix.Sendto(s.fd, frame, 0, sll); err != nil {
		if err != unix.EWOULDBLOCK {
			s.log.WithError(err).WithField("ifindex", ifindex).Error("bpdu send failed")
		}
	}
}

// Close shuts the socket down and stops the receive goroutine.
func (s *Socket) Close() error {
	close(s.closed)
	err := unix.Close(s.fd)
	s.wg.Wait()
	return err
}
