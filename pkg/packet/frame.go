package packet

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// BPDUGroupAddress is the destination MAC every spanning tree BPDU is
// sent to, 802.1Q Table 8-1.
var BPDUGroupAddress = net.HardwareAddr{0x01, 0x80, 0xC2, 0x00, 0x00, 0x00}

const (
	// llcSAP is the DSAP/SSAP of the spanning tree protocol
	llcSAP = 0x42

	// llcControlUI unnumbered information frame
	llcControlUI = 0x03

	// llcHeaderLen DSAP + SSAP + control
	llcHeaderLen = 3

	// MaxBPDULen bounds a valid BPDU payload; anything longer than
	// an MST BPDU with the full set of instance records is bogus
	MaxBPDULen = 102 + 16*64
)

// Error types for frame parsing
var (
	// ErrNotBPDU is returned for frames not addressed to the bridge
	// group address or not carrying the STP LLC header
	ErrNotBPDU = fmt.Errorf("not a bpdu frame")

	// ErrTruncatedFrame is returned when the LLC header is followed
	// by no BPDU payload
	ErrTruncatedFrame = fmt.Errorf("truncated 802.2 frame")
)

// ExtractBPDU parses a raw 802.2 frame and returns the naked BPDU
// payload. The caller keeps ownership of the buffer; the returned
// slice aliases it.
func ExtractBPDU(frame []byte) ([]byte, error) {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Lazy)
	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return nil, ErrNotBPDU
	}
	eth := ethLayer.(*layers.Ethernet)
	if !macEqual(eth.DstMAC, BPDUGroupAddress) {
		return nil, ErrNotBPDU
	}
	llcLayer := pkt.Layer(layers.LayerTypeLLC)
	if llcLayer == nil {
		return nil, ErrNotBPDU
	}
	llc := llcLayer.(*layers.LLC)
	if llc.DSAP != llcSAP || llc.SSAP != llcSAP || llc.Control != llcControlUI {
		return nil, ErrNotBPDU
	}
	payload := llc.Payload
	if len(payload) == 0 {
		return nil, ErrTruncatedFrame
	}
	if len(payload) > MaxBPDULen {
		payload = payload[:MaxBPDULen]
	}
	return payload, nil
}

// BuildFrame wraps a BPDU payload in the 802.3 + LLC framing for
// transmission from the given source address.
func BuildFrame(src net.HardwareAddr, payload []byte) []byte {
	frame := make([]byte, 14+llcHeaderLen+len(payload))
	copy(frame[0:6], BPDUGroupAddress)
	copy(frame[6:12], src)
	binary.BigEndian.PutUint16(frame[12:14], uint16(llcHeaderLen+len(payload)))
	frame[14] = llcSAP
	frame[15] = llcSAP
	frame[16] = llcControlUI
	copy(frame[17:], payload)
	return frame
}

func macEqual(a, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
