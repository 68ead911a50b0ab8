package ctl

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRequestRoundTrip(t *testing.T) {
	args := PortArgs{Bridge: "br0", Port: "eth1"}
	wire, err := EncodeRequest(CmdGetCISTPortStatus, args)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}

	req, err := DecodeRequest(wire)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if req.Cmd != CmdGetCISTPortStatus {
		t.Errorf("cmd = %d, want %d", req.Cmd, CmdGetCISTPortStatus)
	}
	var got PortArgs
	if err := json.Unmarshal(req.Data, &got); err != nil {
		t.Fatalf("decode args: %v", err)
	}
	if diff := cmp.Diff(args, got); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	wire, err := EncodeResponse(StatusNoSuchTree, MSTIListResult{MSTIDs: nil})
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	resp, err := DecodeResponse(wire)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if resp.Status != StatusNoSuchTree {
		t.Errorf("status = %d, want %d", resp.Status, StatusNoSuchTree)
	}
}

func TestDecodeRequestErrors(t *testing.T) {
	if _, err := DecodeRequest([]byte{1, 2}); !errors.Is(err, ErrShortDatagram) {
		t.Errorf("short datagram: %v", err)
	}

	wire, _ := EncodeRequest(CmdListBridges, nil)
	wire[3] = 99
	if _, err := DecodeRequest(wire); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("bad version: %v", err)
	}

	wire, _ = EncodeRequest(CmdListBridges, BridgeArgs{Bridge: "br0"})
	wire[11]++ // length no longer matches the datagram
	if _, err := DecodeRequest(wire); !errors.Is(err, ErrBlobTooLarge) {
		t.Errorf("bad length: %v", err)
	}
}
