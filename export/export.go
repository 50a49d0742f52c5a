package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tangled.sh/cuesheet/show"
	"tangled.sh/cuesheet/tags"
	"tangled.sh/cuesheet/timecode"
)

var ErrUnknownFormat = errors.New("unknown export format")

type Format string

const (
	JSON Format = "json"
	CSV  Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case JSON, CSV:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) MimeType() string {
	if f == CSV {
		return "text/csv"
	}
	return "application/json"
}

// File is an encoded export ready to hand to a client.
type File struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
	Filename string `json:"filename"`
}

// Filename embeds at as an ISO timestamp with ":" and "." replaced by "-",
// e.g. cuesheet-notes-2026-10-14T19-30-00-000Z.csv.
func Filename(f Format, at time.Time) string {
	stamp := at.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return fmt.Sprintf("cuesheet-notes-%s.%s", stamp, f)
}

func Encode(f Format, snap show.Snapshot, at time.Time) (File, error) {
	var data string
	var err error
	switch f {
	case JSON:
		data, err = encodeJSON(snap, at)
	case CSV:
		data = encodeCSV(snap)
	default:
		return File{}, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if err != nil {
		return File{}, err
	}

	return File{
		Data:     data,
		MimeType: f.MimeType(),
		Filename: Filename(f, at),
	}, nil
}

type document struct {
	ExportedAt time.Time         `json:"exportedAt"`
	TimeMode   show.TimeMode     `json:"timeMode"`
	Timecode   timecode.Timecode `json:"timecode"`
	Notes      []show.Note       `json:"notes"`
	Users      []show.User       `json:"users"`
	Tags       []tags.Tag        `json:"tags"`
}

func encodeJSON(snap show.Snapshot, at time.Time) (string, error) {
	doc := document{
		ExportedAt: at.UTC(),
		TimeMode:   snap.TimeMode,
		Timecode:   snap.Timecode,
		Notes:      snap.Notes,
		Users:      snap.Users,
		Tags:       snap.Tags,
	}
	if doc.Notes == nil {
		doc.Notes = []show.Note{}
	}
	if doc.Users == nil {
		doc.Users = []show.User{}
	}
	if doc.Tags == nil {
		doc.Tags = []tags.Tag{}
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding json export: %w", err)
	}
	return string(b), nil
}
