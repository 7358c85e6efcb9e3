// Package render turns decoded packet records into output lines.
//
// Three formats are supported: JSON for machine ingestion, a labelled plain
// text block for operators and a hex dump of the raw frame for forensics.
// All renderers are pure functions and safe for concurrent use.
package render

import (
	"fmt"
	"strings"

	"firestige.xyz/siemtap/internal/core"
)

// Format selects an output rendering.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatHex  Format = "hex"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatText, FormatHex}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatJSON, FormatText, FormatHex:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q, must be json, text or hex", s)
}

// Render renders rec in format f. The hex format dumps raw, the frame rec was
// decoded from; the other formats ignore raw.
func Render(f Format, rec *core.PacketRecord, raw []byte) (string, error) {
	switch f {
	case FormatJSON:
		return JSON(rec), nil
	case FormatText:
		return Text(rec), nil
	case FormatHex:
		return HexDump(raw), nil
	}
	return "", fmt.Errorf("unknown output format %q", string(f))
}
