package packet

import (
	"bytes"
	"net"
	"testing"
)

func TestBuildExtractRoundTrip(t *testing.T) {
	src, _ := net.ParseMAC("00:11:22:33:44:55")
	payload := []byte{0x00, 0x00, 0x02, 0x02, 0x0e}
	payload = append(payload, make([]byte, 31)...)

	frame := BuildFrame(src, payload)

	if !bytes.Equal(frame[0:6], BPDUGroupAddress) {
		t.Error("destination is not the bridge group address")
	}
	if frame[12] != 0 || frame[13] != byte(3+len(payload)) {
		t.Errorf("802.3 length = %d, want %d", int(frame[12])<<8|int(frame[13]), 3+len(payload))
	}

	got, err := ExtractBPDU(frame)
	if err != nil {
		t.Fatalf("ExtractBPDU: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch:\ngot  %x\nwant %x", got, payload)
	}
}

func TestExtractRejectsForeignFrames(t *testing.T) {
	src, _ := net.ParseMAC("00:11:22:33:44:55")

	// Unicast destination.
	frame := BuildFrame(src, []byte{0, 0, 0, 0x80})
	copy(frame[0:6], src)
	if _, err := ExtractBPDU(frame); err == nil {
		t.Error("unicast frame accepted")
	}

	// Wrong LLC SAP.
	frame = BuildFrame(src, []byte{0, 0, 0, 0x80})
	frame[14] = 0xaa
	if _, err := ExtractBPDU(frame); err == nil {
		t.Error("frame with wrong DSAP accepted")
	}
}
