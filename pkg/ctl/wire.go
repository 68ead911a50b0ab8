package ctl

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Wire framing: every datagram is a fixed header followed by an
// opaque blob. Requests carry (version, command, length); responses
// (version, status, length).
const headerLen = 12

// maxBlobLen bounds a control blob; the largest legitimate payload is
// a 4096-entry mapping table.
const maxBlobLen = 1 << 18

// Error types for control framing
var (
	// ErrShortDatagram is returned on a datagram smaller than the header
	ErrShortDatagram = fmt.Errorf("short control datagram")

	// ErrVersionMismatch is returned on an unknown protocol version
	ErrVersionMismatch = fmt.Errorf("control protocol version mismatch")

	// ErrBlobTooLarge is returned when the length field exceeds the cap
	ErrBlobTooLarge = fmt.Errorf("control blob too large")
)

// Request is one decoded control request.
type Request struct {
	Cmd  Command
	Data []byte
}

// Response is one control response awaiting encoding.
type Response struct {
	Status uint32
	Data   []byte
}

// EncodeRequest frames a command and marshaled argument blob.
func EncodeRequest(cmd Command, args any) ([]byte, error) {
	var blob []byte
	if args != nil {
		var err error
		blob, err = json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshal control args: %w", err)
		}
	}
	buf := make([]byte, headerLen+len(blob))
	binary.BigEndian.PutUint32(buf[0:4], ProtocolVersion)
	binary.BigEndian.PutUint32(buf[4:8], uint32(cmd))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(blob)))
	copy(buf[headerLen:], blob)
	return buf, nil
}

// DecodeRequest parses one request datagram.
func DecodeRequest(datagram []byte) (Request, error) {
	if len(datagram) < headerLen {
		return Request{}, ErrShortDatagram
	}
	if binary.BigEndian.Uint32(datagram[0:4]) != ProtocolVersion {
		return Request{}, ErrVersionMismatch
	}
	length := binary.BigEndian.Uint32(datagram[8:12])
	if length > maxBlobLen || int(length) != len(datagram)-headerLen {
		return Request{}, ErrBlobTooLarge
	}
	return Request{
		Cmd:  Command(binary.BigEndian.Uint32(datagram[4:8])),
		Data: datagram[headerLen:],
	}, nil
}

// EncodeResponse frames a status and result blob.
func EncodeResponse(status uint32, result any) ([]byte, error) {
	var blob []byte
	if result != nil {
		var err error
		blob, err = json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshal control result: %w", err)
		}
	}
	return EncodeRawResponse(status, blob), nil
}

// EncodeRawResponse frames a status and an already-marshaled blob.
func EncodeRawResponse(status uint32, blob []byte) []byte {
	buf := make([]byte, headerLen+len(blob))
	binary.BigEndian.PutUint32(buf[0:4], ProtocolVersion)
	binary.BigEndian.PutUint32(buf[4:8], status)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(blob)))
	copy(buf[headerLen:], blob)
	return buf
}

// DecodeResponse parses one response datagram.
func DecodeResponse(datagram []byte) (Response, error) {
	if len(datagram) < headerLen {
		return Response{}, ErrShortDatagram
	}
	if binary.BigEndian.Uint32(datagram[0:4]) != ProtocolVersion {
		return Response{}, ErrVersionMismatch
	}
	length := binary.BigEndian.Uint32(datagram[8:12])
	if length > maxBlobLen || int(length) != len(datagram)-headerLen {
		return Response{}, ErrBlobTooLarge
	}
	return Response{
		Status: binary.BigEndian.Uint32(datagram[4:8]),
		Data:   datagram[headerLen:],
	}, nil
}
