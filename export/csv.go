package export

import (
	"strings"
	"time"

	"tangled.sh/cuesheet/show"
	"tangled.sh/cuesheet/timecode"
)

var header = []string{"User", "Timecode", "Frame Rate", "LX Cue", "Note", "Tags", "Comments", "Timestamp"}

// quote wraps a field in double quotes, doubling any embedded quote.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func writeRow(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quote(f))
	}
	b.WriteString("\n")
}

func encodeCSV(snap show.Snapshot) string {
	names := make(map[string]string, len(snap.Tags))
	for _, t := range snap.Tags {
		names[t.ID] = t.Name
	}

	var b strings.Builder
	writeRow(&b, header)

	for _, n := range snap.Notes {
		tagNames := make([]string, 0, len(n.TagIDs))
		for _, id := range n.TagIDs {
			if name, ok := names[id]; ok {
				tagNames = append(tagNames, name)
			} else {
				tagNames = append(tagNames, id)
			}
		}

		comments := make([]string, 0, len(n.Comments))
		for _, c := range n.Comments {
			comments = append(comments, c.AuthorName+": "+c.Text)
		}

		tc := n.Timecode
		rate := ""
		if tc.FrameRate.Valid() {
			rate = tc.FrameRate.String()
		}

		writeRow(&b, []string{
			n.AuthorName,
			timecode.Format(&tc),
			rate,
			n.LXCue,
			n.Text,
			strings.Join(tagNames, ", "),
			strings.Join(comments, "; "),
			n.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return b.String()
}
