package timecode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid timecode")

// Kind identifies which time source produced a Timecode.
type Kind int

const (
	External Kind = iota
	Synthetic
)

func (k Kind) String() string {
	switch k {
	case External:
		return "external"
	case Synthetic:
		return "synthetic"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case External, Synthetic:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("unknown source kind %d", int(k))
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "external":
		*k = External
	case "synthetic":
		*k = Synthetic
	default:
		return fmt.Errorf("unknown source kind %q", b)
	}
	return nil
}

// FrameRate is one of the four rates a 2-bit MTC rate code can select.
type FrameRate int

const (
	Rate24 FrameRate = iota
	Rate25
	Rate2997
	Rate30
)

// RateFromCode maps an MTC rate code to a FrameRate. Unmapped codes are 30fps.
func RateFromCode(code byte) FrameRate {
	switch code {
	case 0:
		return Rate24
	case 1:
		return Rate25
	case 2:
		return Rate2997
	default:
		return Rate30
	}
}

// Code is the inverse of RateFromCode.
func (r FrameRate) Code() byte {
	switch r {
	case Rate24:
		return 0
	case Rate25:
		return 1
	case Rate2997:
		return 2
	default:
		return 3
	}
}

func (r FrameRate) FPS() float64 {
	switch r {
	case Rate24:
		return 24
	case Rate25:
		return 25
	case Rate2997:
		return 29.97
	default:
		return 30
	}
}

// Base is the frame count at which frames roll over into seconds. 29.97 is
// counted as 30; drop-frame numbering is not applied.
func (r FrameRate) Base() int {
	switch r {
	case Rate24:
		return 24
	case Rate25:
		return 25
	default:
		return 30
	}
}

// Interval is the wall time of one frame.
func (r FrameRate) Interval() time.Duration {
	return time.Duration(float64(time.Second) / r.FPS())
}

func (r FrameRate) Valid() bool {
	return r >= Rate24 && r <= Rate30
}

func (r FrameRate) String() string {
	return strconv.FormatFloat(r.FPS(), 'f', -1, 64)
}

func ParseFrameRate(s string) (FrameRate, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Rate30, fmt.Errorf("parsing frame rate %q: %w", s, err)
	}
	return rateFromFPS(f)
}

func rateFromFPS(f float64) (FrameRate, error) {
	for _, r := range []FrameRate{Rate24, Rate25, Rate2997, Rate30} {
		if math.Abs(r.FPS()-f) < 0.001 {
			return r, nil
		}
	}
	return Rate30, fmt.Errorf("unsupported frame rate %v", f)
}

func (r FrameRate) MarshalJSON() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *FrameRate) UnmarshalJSON(b []byte) error {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("frame rate: %w", err)
	}
	rate, err := rateFromFPS(f)
	if err != nil {
		return err
	}
	*r = rate
	return nil
}

// Timecode is a show clock position. Fields stay within their modulus for
// FrameRate.
type Timecode struct {
	Hours     int       `json:"hours"`
	Minutes   int       `json:"minutes"`
	Seconds   int       `json:"seconds"`
	Frames    int       `json:"frames"`
	FrameRate FrameRate `json:"frameRate"`
	Source    Kind      `json:"source"`
}

func (t Timecode) Valid() bool {
	return t.FrameRate.Valid() &&
		t.Hours >= 0 && t.Hours < 24 &&
		t.Minutes >= 0 && t.Minutes < 60 &&
		t.Seconds >= 0 && t.Seconds < 60 &&
		t.Frames >= 0 && t.Frames < t.FrameRate.Base()
}

// SamePosition reports whether hours, minutes, seconds and frames match.
// Rate and source are ignored.
func (t Timecode) SamePosition(o Timecode) bool {
	return t.Hours == o.Hours &&
		t.Minutes == o.Minutes &&
		t.Seconds == o.Seconds &&
		t.Frames == o.Frames
}

// Next advances one frame, carrying into seconds, minutes and hours and
// wrapping at 24h.
func (t Timecode) Next() Timecode {
	t.Frames++
	if t.Frames >= t.FrameRate.Base() {
		t.Frames = 0
		t.Seconds++
	}
	if t.Seconds >= 60 {
		t.Seconds = 0
		t.Minutes++
	}
	if t.Minutes >= 60 {
		t.Minutes = 0
		t.Hours++
	}
	if t.Hours >= 24 {
		t.Hours = 0
	}
	return t
}

// String formats as HH:MM:SS:FF.
func (t Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", t.Hours, t.Minutes, t.Seconds, t.Frames)
}

// Format renders tc as HH:MM:SS:FF, or 00:00:00:00 when tc is nil or out of
// range.
func Format(tc *Timecode) string {
	if tc == nil || !tc.Valid() {
		return "00:00:00:00"
	}
	return tc.String()
}

// Parse reads HH:MM:SS:FF (";" is accepted before the frames field).
func Parse(s string, rate FrameRate) (Timecode, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ";", ":")
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return Timecode{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	var fields [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Timecode{}, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		fields[i] = n
	}

	tc := Timecode{
		Hours:     fields[0],
		Minutes:   fields[1],
		Seconds:   fields[2],
		Frames:    fields[3],
		FrameRate: rate,
	}
	if !tc.Valid() {
		return Timecode{}, fmt.Errorf("%w: %q out of range at %s fps", ErrInvalid, s, rate)
	}
	return tc, nil
}
