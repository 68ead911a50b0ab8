package bpdu

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/binary"
)

// digestKey is the fixed HMAC-MD5 key of the MST Configuration Digest,
// IEEE 802.1Q clause 13.8. It is part of the protocol, not a secret;
// a dedicated keyed computation keeps it out of any generic hashing
// plumbing.
var digestKey = [16]byte{
	0x13, 0xAC, 0x06, 0xA6, 0x2E, 0x47, 0xFD, 0x51,
	0xF9, 0x5D, 0x2B, 0xA2, 0x43, 0xCD, 0x03, 0x46,
}

// vidTableSize is the number of entries hashed; entries 0 and 4095 are
// always zero, VIDs 1..4094 carry the MSTID their VLAN maps to.
const vidTableSize = 4096

// ComputeDigest computes the MST Configuration Digest over the
// VID-to-MSTID table: HMAC-MD5 of 4096 big-endian 16-bit MSTIDs
// indexed by VID.
func ComputeDigest(vid2mstid *[vidTableSize]uint16) [16]byte {
	mac := hmac.New(md5.New, digestKey[:])
	var entry [2]byte
	for vid := 0; vid < vidTableSize; vid++ {
		binary.BigEndian.PutUint16(entry[:], vid2mstid[vid])
		mac.Write(entry[:])
	}
	var digest [16]byte
	copy(digest[:], mac.Sum(nil))
	return digest
}
