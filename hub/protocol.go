package hub

import (
	"encoding/json"

	"tangled.sh/cuesheet/timecode"
)

// inbound event types
const (
	NoteSubmit     = "note-submit"
	NoteUpdateTags = "note-update-tags"
	CommentSubmit  = "comment-submit"
	CreateTag      = "create-tag"
	DeleteTag      = "delete-tag"
	TypingStart    = "typing-start"
	TypingStop     = "typing-stop"
	TimeModeChange = "time-mode-change"
	UserNameChange = "user-name-change"
	ExportRequest  = "export-request"
)

// outbound event types
const (
	TimecodeUpdate    = "timecode-update"
	NotesUpdate       = "notes-update"
	NoteAdded         = "note-added"
	UsersUpdate       = "users-update"
	UserJoined        = "user-joined"
	UserLeft          = "user-left"
	UserInfo          = "user-info"
	TagsUpdate        = "tags-update"
	TimeModeUpdate    = "time-mode-update"
	SystemStatus      = "system-status"
	NameChangeError   = "name-change-error"
	NameChangeSuccess = "name-change-success"
	ExportData        = "export-data"
)

// Envelope is the frame every event travels in, both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// wireTimecode is a client-supplied position. frameRate may be omitted, in
// which case the show's current rate applies.
type wireTimecode struct {
	Hours     int                 `json:"hours"`
	Minutes   int                 `json:"minutes"`
	Seconds   int                 `json:"seconds"`
	Frames    int                 `json:"frames"`
	FrameRate *timecode.FrameRate `json:"frameRate"`
}

func (w *wireTimecode) resolve(current timecode.Timecode) *timecode.Timecode {
	if w == nil {
		return nil
	}
	tc := timecode.Timecode{
		Hours:     w.Hours,
		Minutes:   w.Minutes,
		Seconds:   w.Seconds,
		Frames:    w.Frames,
		FrameRate: current.FrameRate,
		Source:    current.Source,
	}
	if w.FrameRate != nil {
		tc.FrameRate = *w.FrameRate
	}
	return &tc
}

type noteSubmitData struct {
	Text     string        `json:"text"`
	Timecode *wireTimecode `json:"timecode"`
	TagIDs   []string      `json:"tagIds"`
	LXCue    string        `json:"lxCue"`
}

type noteUpdateTagsData struct {
	NoteID string   `json:"noteId"`
	Tags   []string `json:"tags"`
}

type commentSubmitData struct {
	NoteID string `json:"noteId"`
	Text   string `json:"text"`
}

type createTagData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type deleteTagData struct {
	TagID string `json:"tagId"`
}

type typingStartData struct {
	Timecode *wireTimecode `json:"timecode"`
}

type timeModeChangeData struct {
	Mode string `json:"mode"`
}

type userNameChangeData struct {
	NewName string `json:"newName"`
}

type exportRequestData struct {
	Format string `json:"format"`
}

type presenceData struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type userInfoData struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type timeModeData struct {
	Mode string `json:"mode"`
}

type messageData struct {
	Message string `json:"message"`
}

// Status describes the time source for system-status events.
type Status struct {
	SourceAvailable bool          `json:"sourceAvailable"`
	PortCount       int           `json:"portCount"`
	SourceKind      timecode.Kind `json:"sourceKind"`
	SourceName      string        `json:"sourceName,omitempty"`
}
