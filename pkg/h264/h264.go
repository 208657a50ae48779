package h264

import "bytes"

const (
	NALUTypePFrame = 1 // Coded slice of a non-IDR picture
	NALUTypeIFrame = 5 // Coded slice of an IDR picture
	NALUTypeSEI    = 6 // Supplemental enhancement information (SEI)
	NALUTypeSPS    = 7 // Sequence parameter set
	NALUTypePPS    = 8 // Picture parameter set
	NALUTypeAUD    = 9 // Access unit delimiter
)

// NALUType of a bare unit (no start code)
func NALUType(b []byte) byte {
	return b[0] & 0x1F
}

var startCode = []byte{0, 0, 0, 1}

// Split Annex-B stream into bare NAL units.
// Adapters send one unit per packet almost always, but SPS+PPS+IDR
// arrive bundled at stream start. Supports 3 and 4 byte start codes.
func Split(annexb []byte) [][]byte {
	var units [][]byte

	i := indexStartCode(annexb)
	if i < 0 {
		return nil
	}

	for i < len(annexb) {
		// skip start code
		if annexb[i+2] == 1 {
			i += 3
		} else {
			i += 4
		}

		n := indexStartCodeFrom(annexb, i)
		if n < 0 {
			n = len(annexb)
		}

		if i < n {
			units = append(units, annexb[i:n])
		}
		i = n
	}

	return units
}

// IsKeyframe - check if any NALU in Annex-B payload is IDR
func IsKeyframe(annexb []byte) bool {
	for _, unit := range Split(annexb) {
		switch NALUType(unit) {
		case NALUTypePFrame:
			return false
		case NALUTypeIFrame:
			return true
		}
	}
	return false
}

// JoinAnnexB - bare units back to Annex-B with 4 byte start codes
func JoinAnnexB(units ...[]byte) []byte {
	var n int
	for _, unit := range units {
		n += len(startCode) + len(unit)
	}

	b := make([]byte, 0, n)
	for _, unit := range units {
		b = append(b, startCode...)
		b = append(b, unit...)
	}
	return b
}

func indexStartCode(b []byte) int {
	return indexStartCodeFrom(b, 0)
}

func indexStartCodeFrom(b []byte, from int) int {
	for {
		i := bytes.Index(b[from:], []byte{0, 0, 1})
		if i < 0 {
			return -1
		}
		i += from
		// 00 00 01 may be the tail of a 4 byte code
		if i > 0 && b[i-1] == 0 {
			i--
		}
		if i >= from {
			return i
		}
		from = i + 3
	}
}
