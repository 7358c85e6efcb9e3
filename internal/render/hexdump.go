package render

import (
	"fmt"
	"strings"
)

const hexDumpWidth = 16

// HexDump renders data in the classic 16-bytes-per-line layout:
//
//	0000  45 00 00 28 00 01 40 00  40 06 00 00 c0 a8 01 64  E..(..@.@......d
//
// A short last line pads the hex column with blanks and prints ASCII only for
// the bytes present. Every line ends with a newline; empty data yields "".
func HexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	lines := (len(data) + hexDumpWidth - 1) / hexDumpWidth
	var sb strings.Builder
	sb.Grow(lines * 75)

	for off := 0; off < len(data); off += hexDumpWidth {
		end := min(off+hexDumpWidth, len(data))
		row := data[off:end]

		fmt.Fprintf(&sb, "%04x  ", off)

		for j := 0; j < hexDumpWidth; j++ {
			if j < len(row) {
				fmt.Fprintf(&sb, "%02x ", row[j])
			} else {
				sb.WriteString("   ")
			}
			if j == 7 {
				sb.WriteByte(' ')
			}
		}

		sb.WriteByte(' ')
		for _, b := range row {
			if b >= 0x20 && b <= 0x7e {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}
