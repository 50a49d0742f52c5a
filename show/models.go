package show

import (
	"fmt"
	"time"

	"tangled.sh/cuesheet/tags"
	"tangled.sh/cuesheet/timecode"
)

// TimeMode selects how clients present the show clock. It is global to the
// show, not per user.
type TimeMode int

const (
	ExternalClock TimeMode = iota
	WallClock
)

func (m TimeMode) String() string {
	switch m {
	case ExternalClock:
		return "external-clock"
	case WallClock:
		return "wall-clock"
	}
	return fmt.Sprintf("TimeMode(%d)", int(m))
}

func (m TimeMode) Valid() bool {
	switch m {
	case ExternalClock, WallClock:
		return true
	}
	return false
}

// ParseTimeMode accepts the two wire names; anything else is not a mode.
func ParseTimeMode(s string) (TimeMode, bool) {
	switch s {
	case "external-clock":
		return ExternalClock, true
	case "wall-clock":
		return WallClock, true
	}
	return 0, false
}

func (m TimeMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid time mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *TimeMode) UnmarshalText(b []byte) error {
	mode, ok := ParseTimeMode(string(b))
	if !ok {
		return fmt.Errorf("invalid time mode %q", b)
	}
	*m = mode
	return nil
}

type User struct {
	ID            string             `json:"id"`
	DisplayName   string             `json:"displayName"`
	IsTyping      bool               `json:"isTyping"`
	DraftTimecode *timecode.Timecode `json:"draftTimecode"`
	JoinedAt      time.Time          `json:"joinedAt"`
}

type Comment struct {
	ID           string    `json:"id"`
	AuthorUserID string    `json:"authorUserId"`
	AuthorName   string    `json:"authorDisplayNameSnapshot"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Note is immutable once created apart from TagIDs, Comments and the
// author name snapshots, which follow renames.
type Note struct {
	ID           string            `json:"id"`
	AuthorUserID string            `json:"authorUserId"`
	AuthorName   string            `json:"authorDisplayNameSnapshot"`
	Text         string            `json:"text"`
	LXCue        string            `json:"lxCue,omitempty"`
	Timecode     timecode.Timecode `json:"timecode"`
	TagIDs       []string          `json:"tagIds"`
	Comments     []Comment         `json:"comments"`
	CreatedAt    time.Time         `json:"createdAt"`
}

func (n Note) clone() Note {
	n.TagIDs = append([]string{}, n.TagIDs...)
	n.Comments = append([]Comment{}, n.Comments...)
	return n
}

func (u User) clone() User {
	if u.DraftTimecode != nil {
		tc := *u.DraftTimecode
		u.DraftTimecode = &tc
	}
	return u
}

// Snapshot is a deep copy of everything clients can see.
type Snapshot struct {
	Timecode timecode.Timecode `json:"timecode"`
	TimeMode TimeMode          `json:"timeMode"`
	Notes    []Note            `json:"notes"`
	Users    []User            `json:"users"`
	Tags     []tags.Tag        `json:"tags"`
}
