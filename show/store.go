package show

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"tangled.sh/cuesheet/tags"
	"tangled.sh/cuesheet/timecode"
)

// Result reports whether a mutation found its target and applied.
type Result int

const (
	Ok Result = iota
	NotFound
	Invalid
)

func (r Result) String() string {
	switch r {
	case Ok:
		return "ok"
	case NotFound:
		return "not found"
	case Invalid:
		return "invalid"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

var (
	ErrNameConflict = errors.New("name is already taken")
	ErrInvalidName  = errors.New("name must be 1-32 characters")
	ErrUserNotFound = errors.New("user not found")
)

const MaxNameLength = 32

type Options struct {
	Logger   *slog.Logger
	TagStore tags.Store
	Now      func() time.Time
	IntN     func(n int) int
	NewID    func() string
	Start    timecode.Timecode
}

// Store is the single authoritative record of the show. It is not safe for
// concurrent use: one goroutine owns it and applies every mutation.
type Store struct {
	l        *slog.Logger
	tagStore tags.Store
	now      func() time.Time
	intn     func(n int) int
	newID    func() string

	timecode timecode.Timecode
	mode     TimeMode
	users    []*User
	notes    []*Note
	tags     []tags.Tag
}

// New builds a store and loads the tag list. A missing or unreadable tag
// store is logged and replaced by tags.Defaults.
func New(ctx context.Context, opts Options) *Store {
	s := &Store{
		l:        opts.Logger,
		tagStore: opts.TagStore,
		now:      opts.Now,
		intn:     opts.IntN,
		newID:    opts.NewID,
		timecode: opts.Start,
		mode:     ExternalClock,
	}
	if s.l == nil {
		s.l = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.intn == nil {
		s.intn = rand.IntN
	}
	if s.newID == nil {
		s.newID = TID
	}

	s.tags = tags.Defaults()
	if s.tagStore != nil {
		loaded, err := s.tagStore.Load(ctx)
		if err != nil {
			s.l.Warn("failed to load tags, using defaults", "err", err)
		} else {
			s.tags = loaded
			s.l.Info("loaded tags", "count", len(loaded))
		}
	}

	return s
}

// SetTimecode replaces the current position. Out-of-range values are
// dropped and reported false.
func (s *Store) SetTimecode(tc timecode.Timecode) bool {
	if !tc.Valid() {
		return false
	}
	s.timecode = tc
	return true
}

func (s *Store) Timecode() timecode.Timecode {
	return s.timecode
}

// SetTimeMode reports whether the mode changed. Invalid modes are ignored.
func (s *Store) SetTimeMode(m TimeMode) bool {
	if !m.Valid() || m == s.mode {
		return false
	}
	s.mode = m
	return true
}

func (s *Store) TimeMode() TimeMode {
	return s.mode
}

func (s *Store) findUser(id string) *User {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (s *Store) findNote(id string) *Note {
	for _, n := range s.notes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// AddUser registers a connection with a generated "UserNNN" name. Generated
// names may collide; uniqueness only applies to explicit renames. Adding an
// id twice returns the existing user.
func (s *Store) AddUser(id string) User {
	if u := s.findUser(id); u != nil {
		return u.clone()
	}
	u := &User{
		ID:          id,
		DisplayName: fmt.Sprintf("User%d", s.intn(1000)),
		JoinedAt:    s.now(),
	}
	s.users = append(s.users, u)
	return u.clone()
}

func (s *Store) RemoveUser(id string) (User, Result) {
	for i, u := range s.users {
		if u.ID == id {
			s.users = slices.Delete(s.users, i, i+1)
			return u.clone(), Ok
		}
	}
	return User{}, NotFound
}

func (s *Store) User(id string) (User, bool) {
	u := s.findUser(id)
	if u == nil {
		return User{}, false
	}
	return u.clone(), true
}

func (s *Store) UserCount() int {
	return len(s.users)
}

func (s *Store) Users() []User {
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.clone())
	}
	return out
}

// RenameUser changes a display name and rewrites the author name on every
// note and comment the user wrote. The name is compared case-insensitively
// against the other connected users only.
func (s *Store) RenameUser(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return ErrInvalidName
	}

	u := s.findUser(id)
	if u == nil {
		return ErrUserNotFound
	}

	for _, other := range s.users {
		if other.ID != id && strings.EqualFold(other.DisplayName, name) {
			return fmt.Errorf("%w: %s", ErrNameConflict, other.DisplayName)
		}
	}

	u.DisplayName = name
	for _, n := range s.notes {
		if n.AuthorUserID == id {
			n.AuthorName = name
		}
		for i := range n.Comments {
			if n.Comments[i].AuthorUserID == id {
				n.Comments[i].AuthorName = name
			}
		}
	}
	return nil
}

// SetTyping marks a user as composing a note. The draft timecode is the
// override when valid, otherwise the current position. typing=false clears
// both.
func (s *Store) SetTyping(id string, typing bool, override *timecode.Timecode) Result {
	u := s.findUser(id)
	if u == nil {
		return NotFound
	}

	u.IsTyping = typing
	u.DraftTimecode = nil
	if typing {
		tc := s.timecode
		if override != nil && override.Valid() {
			tc = *override
		}
		u.DraftTimecode = &tc
	}
	return Ok
}

type NoteInput struct {
	AuthorUserID string
	Text         string
	LXCue        string
	TagIDs       []string
	// Timecode overrides the current position when set and valid.
	Timecode *timecode.Timecode
}

// SubmitNote appends a note. The timecode is captured now, at submission.
func (s *Store) SubmitNote(in NoteInput) (Note, Result) {
	author := s.findUser(in.AuthorUserID)
	if author == nil {
		return Note{}, NotFound
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Note{}, Invalid
	}

	tc := s.timecode
	if in.Timecode != nil && in.Timecode.Valid() {
		tc = *in.Timecode
	}

	n := &Note{
		ID:           s.newID(),
		AuthorUserID: author.ID,
		AuthorName:   author.DisplayName,
		Text:         text,
		LXCue:        strings.TrimSpace(in.LXCue),
		Timecode:     tc,
		TagIDs:       uniqueIDs(in.TagIDs),
		Comments:     []Comment{},
		CreatedAt:    s.now(),
	}
	s.notes = append(s.notes, n)
	return n.clone(), Ok
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// UpdateNoteTags replaces a note's tag set.
func (s *Store) UpdateNoteTags(noteID string, tagIDs []string) Result {
	n := s.findNote(noteID)
	if n == nil {
		return NotFound
	}
	n.TagIDs = uniqueIDs(tagIDs)
	return Ok
}

func (s *Store) AddComment(noteID, authorID, text string) (Comment, Result) {
	n := s.findNote(noteID)
	if n == nil {
		return Comment{}, NotFound
	}
	author := s.findUser(authorID)
	if author == nil {
		return Comment{}, NotFound
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, Invalid
	}

	c := Comment{
		ID:           s.newID(),
		AuthorUserID: author.ID,
		AuthorName:   author.DisplayName,
		Text:         text,
		CreatedAt:    s.now(),
	}
	n.Comments = append(n.Comments, c)
	return c, Ok
}

func (s *Store) Notes() []Note {
	out := make([]Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n.clone())
	}
	return out
}

func (s *Store) Tags() []tags.Tag {
	return append([]tags.Tag{}, s.tags...)
}

// UpsertTag replaces the tag with the same id or appends a new one. Without
// an id, one is derived from the name and made unique. The list is saved
// after the change; a failed save is logged and the change kept.
func (s *Store) UpsertTag(ctx context.Context, t tags.Tag) (tags.Tag, Result) {
	t.Name = strings.TrimSpace(t.Name)
	t.ID = strings.TrimSpace(t.ID)
	t.Color = strings.TrimSpace(t.Color)
	if t.Name == "" {
		return tags.Tag{}, Invalid
	}
	if t.Color == "" {
		t.Color = tags.DefaultColor
	}
	if t.ID == "" {
		t.ID = s.freeTagID(tags.Slug(t.Name))
	}

	i := slices.IndexFunc(s.tags, func(e tags.Tag) bool { return e.ID == t.ID })
	if i >= 0 {
		s.tags[i] = t
	} else {
		s.tags = append(s.tags, t)
	}

	s.persistTags(ctx)
	return t, Ok
}

func (s *Store) freeTagID(base string) string {
	taken := func(id string) bool {
		return slices.ContainsFunc(s.tags, func(e tags.Tag) bool { return e.ID == id })
	}
	id := base
	for n := 2; taken(id); n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}

// DeleteTag removes a tag from the list. Notes keep the id in their tag
// sets.
func (s *Store) DeleteTag(ctx context.Context, id string) Result {
	i := slices.IndexFunc(s.tags, func(e tags.Tag) bool { return e.ID == id })
	if i < 0 {
		return NotFound
	}
	s.tags = slices.Delete(s.tags, i, i+1)
	s.persistTags(ctx)
	return Ok
}

func (s *Store) persistTags(ctx context.Context) {
	if s.tagStore == nil {
		return
	}
	if err := s.tagStore.Save(ctx, s.Tags()); err != nil {
		s.l.Error("failed to save tags", "err", err, "count", len(s.tags))
	}
}

func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Timecode: s.timecode,
		TimeMode: s.mode,
		Notes:    s.Notes(),
		Users:    s.Users(),
		Tags:     s.Tags(),
	}
}
