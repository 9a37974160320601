package captions

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// EncodeVTT renders cues as a WebVTT document
func EncodeVTT(cues []types.Cue) []byte {
	var buf bytes.Buffer
	buf.WriteString("WEBVTT\n")

	for i, cue := range cues {
		fmt.Fprintf(&buf, "\n%d\n%s --> %s\n", i+1, vttTimestamp(cue.StartMs), vttTimestamp(cue.EndMs))
		for _, line := range cue.Lines {
			// a blank line would end the cue early
			line = strings.TrimSpace(strings.ReplaceAll(line, "\n", " "))
			if line == "" {
				continue
			}
			buf.WriteString(escapeVTT(line))
			buf.WriteByte('\n')
		}
	}

	return buf.Bytes()
}

// vttTimestamp formats milliseconds as hh:mm:ss.ttt
func vttTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	m := ms / 60000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

var vttEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeVTT(s string) string {
	return vttEscaper.Replace(s)
}
