package show

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tangled.sh/cuesheet/log"
	"tangled.sh/cuesheet/tags"
	"tangled.sh/cuesheet/timecode"
)

type memTags struct {
	loaded  []tags.Tag
	loadErr error
	saveErr error
	saves   [][]tags.Tag
}

func (m *memTags) Load(ctx context.Context) ([]tags.Tag, error) {
	return m.loaded, m.loadErr
}

func (m *memTags) Save(ctx context.Context, t []tags.Tag) error {
	m.saves = append(m.saves, t)
	return m.saveErr
}

var epoch = time.Date(2026, 10, 14, 19, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T, ts tags.Store) *Store {
	t.Helper()
	ids, names := 0, 0
	return New(context.Background(), Options{
		Logger:   log.Discard(),
		TagStore: ts,
		Now:      func() time.Time { return epoch },
		IntN: func(n int) int {
			names++
			return names % n
		},
		NewID: func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
		Start: timecode.Timecode{FrameRate: timecode.Rate30},
	})
}

func at(h, m, s, f int) timecode.Timecode {
	return timecode.Timecode{Hours: h, Minutes: m, Seconds: s, Frames: f, FrameRate: timecode.Rate30}
}

func TestNewLoadsTags(t *testing.T) {
	saved := []tags.Tag{{ID: "fly", Name: "Fly", Color: "#000000"}}
	s := newTestStore(t, &memTags{loaded: saved})
	assert.Equal(t, saved, s.Tags())

	s = newTestStore(t, &memTags{loadErr: errors.New("corrupt")})
	assert.Equal(t, tags.Defaults(), s.Tags())

	s = newTestStore(t, nil)
	assert.Equal(t, tags.Defaults(), s.Tags())
}

func TestTimecodeAndMode(t *testing.T) {
	s := newTestStore(t, nil)

	assert.True(t, s.SetTimecode(at(1, 2, 3, 4)))
	assert.Equal(t, at(1, 2, 3, 4), s.Timecode())
	assert.False(t, s.SetTimecode(at(1, 61, 3, 4)))
	assert.Equal(t, at(1, 2, 3, 4), s.Timecode())

	assert.Equal(t, ExternalClock, s.TimeMode())
	assert.False(t, s.SetTimeMode(ExternalClock), "unchanged mode")
	assert.True(t, s.SetTimeMode(WallClock))
	assert.False(t, s.SetTimeMode(TimeMode(7)), "invalid mode is a no-op")
	assert.Equal(t, WallClock, s.TimeMode())
}

func TestParseTimeMode(t *testing.T) {
	m, ok := ParseTimeMode("wall-clock")
	assert.True(t, ok)
	assert.Equal(t, WallClock, m)

	_, ok = ParseTimeMode("mtc")
	assert.False(t, ok)

	b, err := json.Marshal(ExternalClock)
	require.NoError(t, err)
	assert.Equal(t, `"external-clock"`, string(b))

	_, err = json.Marshal(TimeMode(9))
	assert.Error(t, err)
}

func TestUserLifecycle(t *testing.T) {
	s := newTestStore(t, nil)

	a := s.AddUser("a")
	assert.Equal(t, "User1", a.DisplayName)
	assert.Equal(t, epoch, a.JoinedAt)
	assert.Equal(t, a, s.AddUser("a"), "adding twice keeps the user")

	s.AddUser("b")
	assert.Equal(t, 2, s.UserCount())

	removed, res := s.RemoveUser("a")
	assert.Equal(t, Ok, res)
	assert.Equal(t, "a", removed.ID)

	_, res = s.RemoveUser("a")
	assert.Equal(t, NotFound, res)
	assert.Equal(t, 1, s.UserCount())
}

func TestGeneratedNamesMayCollide(t *testing.T) {
	s := New(context.Background(), Options{
		Logger: log.Discard(),
		IntN:   func(int) int { return 7 },
	})
	a := s.AddUser("a")
	b := s.AddUser("b")
	assert.Equal(t, "User7", a.DisplayName)
	assert.Equal(t, a.DisplayName, b.DisplayName)
}

func TestSubmitNoteCapturesCurrentTimecode(t *testing.T) {
	s := newTestStore(t, nil)
	s.AddUser("a")
	s.SetTimecode(at(0, 10, 0, 0))

	n, res := s.SubmitNote(NoteInput{AuthorUserID: "a", Text: "  dim the wash  ", TagIDs: []string{"lighting", "lighting", ""}})
	require.Equal(t, Ok, res)

	// later clock movement does not affect the note
	s.SetTimecode(at(0, 11, 0, 0))

	notes := s.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, n, notes[0])
	assert.Equal(t, at(0, 10, 0, 0), notes[0].Timecode)
	assert.Equal(t, "dim the wash", notes[0].Text)
	assert.Equal(t, []string{"lighting"}, notes[0].TagIDs)
	assert.Equal(t, "User1", notes[0].AuthorName)
	assert.Empty(t, notes[0].Comments)
}

func TestSubmitNoteOverride(t *testing.T) {
	s := newTestStore(t, nil)
	s.AddUser("a")
	s.SetTimecode(at(0, 10, 0, 0))

	override := at(1, 2, 3, 4)
	n, res := s.SubmitNote(NoteInput{AuthorUserID: "a", Text: "cue 12", LXCue: "12", Timecode: &override})
	require.Equal(t, Ok, res)
	assert.Equal(t, override, n.Timecode)
	assert.Equal(t, "12", n.LXCue)

	bad := at(1, 2, 3, 40)
	n, res = s.SubmitNote(NoteInput{AuthorUserID: "a", Text: "x", Timecode: &bad})
	require.Equal(t, Ok, res)
	assert.Equal(t, at(0, 10, 0, 0), n.Timecode, "invalid override falls back to current")
}

func TestSubmitNoteRejects(t *testing.T) {
	s := newTestStore(t, nil)
	s.AddUser("a")

	_, res := s.SubmitNote(NoteInput{AuthorUserID: "ghost", Text: "x"})
	assert.Equal(t, NotFound, res)

	_, res = s.SubmitNote(NoteInput{AuthorUserID: "a", Text: "   "})
	assert.Equal(t, Invalid, res)
	assert.Empty(t, s.Notes())
}

func TestNotesAreCopies(t *testing.T) {
	s := newTestStore(t, nil)
	s.AddUser("a")
	s.SubmitNote(NoteInput{AuthorUserID: "a", Text: "x", TagIDs: []string{"sound"}})

	notes := s.Notes()
	notes[0].TagIDs[0] = "mutated"
	assert.Equal(t, []string{"sound"}, s.Notes()[0].TagIDs)
}

func TestUpdateNoteTags(t *testing.T) {
	s := newTestStore(t, nil)
	s.AddUser("a")
	n, _ := s.SubmitNote(NoteInput{AuthorUserID: "a", Text: "x", TagIDs: []string{"sound"}})

	assert.Equal(t, Ok, s.UpdateNoteTags(n.ID, []string{"video", "props"}))
	assert.Equal(t, []string{"video", "props"}, s.Notes()[0].TagIDs)

	assert.Equal(t, Ok, s.UpdateNoteTags(n.ID, nil))
	assert.Equal(t, []string{}, s.Notes()[0].TagIDs)

	assert.Equal(t, NotFound, s.UpdateNoteTags("missing", []string{"x"}))
}

func TestAddComment(t *testing.T) {
	s := newTestStore(t, nil)
	s.AddUser("a")
	s.AddUser("b")
	n, _ := s.SubmitNote(NoteInput{AuthorUserID: "a", Text: "x"})

	c, res := s.AddComment(n.ID, "b", "agreed")
	require.Equal(t, Ok, res)
	assert.Equal(t, "User2", c.AuthorName)

	s.AddComment(n.ID, "a", "thanks")
	comments := s.Notes()[0].Comments
	require.Len(t, comments, 2)
	assert.Equal(t, "agreed", comments[0].Text)
	assert.Equal(t, "thanks", comments[1].Text)

	_, res = s.AddComment("missing", "a", "x")
	assert.Equal(t, NotFound, res)
	_, res = s.AddComment(n.ID, "ghost", "x")
	assert.Equal(t, NotFound, res)
	_, res = s.AddComment(n.ID, "a", "")
	assert.Equal(t, Invalid, res)
}

func TestRenameConflict(t *testing.T) {
	s := newTestStore(t, nil)
	s.AddUser("a")
	s.AddUser("b")
	require.NoError(t, s.RenameUser("a", "Alex"))

	before := s.Snapshot()
	err := s.RenameUser("b", "alex")
	assert.ErrorIs(t, err, ErrNameConflict)
	assert.Equal(t, before, s.Snapshot(), "failed rename leaves state unchanged")

	// a user may change the case of their own name
	assert.NoError(t, s.RenameUser("a", "ALEX"))
}

func TestRenameConflictOnlyWithConnectedUsers(t *testing.T) {
	s := newTestStore(t, nil)
	s.AddUser("a")
	s.AddUser("b")
	require.NoError(t, s.RenameUser("a", "Alex"))
	s.RemoveUser("a")

	assert.NoError(t, s.RenameUser("b", "Alex"))
}

func TestRenameInvalid(t *testing.T) {
	s := newTestStore(t, nil)
	s.AddUser("a")

	assert.ErrorIs(t, s.RenameUser("a", "   "), ErrInvalidName)
	assert.ErrorIs(t, s.RenameUser("a", "abcdefghijklmnopqrstuvwxyzabcdefg"), ErrInvalidName)
	assert.ErrorIs(t, s.RenameUser("ghost", "Sam"), ErrUserNotFound)
}

func TestRenameCascades(t *testing.T) {
	s := newTestStore(t, nil)
	s.AddUser("a")
	s.AddUser("b")
	n1, _ := s.SubmitNote(NoteInput{AuthorUserID: "a", Text: "one"})
	n2, _ := s.SubmitNote(NoteInput{AuthorUserID: "b", Text: "two"})
	s.AddComment(n1.ID, "b", "b on a")
	s.AddComment(n2.ID, "a", "a on b")

	require.NoError(t, s.RenameUser("a", "Sam"))

	notes := s.Notes()
	assert.Equal(t, "Sam", notes[0].AuthorName)
	assert.Equal(t, "User2", notes[0].Comments[0].AuthorName)
	assert.Equal(t, "User2", notes[1].AuthorName)
	assert.Equal(t, "Sam", notes[1].Comments[0].AuthorName)

	u, ok := s.User("a")
	require.True(t, ok)
	assert.Equal(t, "Sam", u.DisplayName)
}

func TestSetTyping(t *testing.T) {
	s := newTestStore(t, nil)
	s.AddUser("a")
	s.SetTimecode(at(0, 0, 5, 0))

	assert.Equal(t, Ok, s.SetTyping("a", true, nil))
	u, _ := s.User("a")
	assert.True(t, u.IsTyping)
	require.NotNil(t, u.DraftTimecode)
	assert.Equal(t, at(0, 0, 5, 0), *u.DraftTimecode)

	override := at(0, 0, 1, 0)
	s.SetTyping("a", true, &override)
	u, _ = s.User("a")
	assert.Equal(t, override, *u.DraftTimecode)

	s.SetTyping("a", false, nil)
	u, _ = s.User("a")
	assert.False(t, u.IsTyping)
	assert.Nil(t, u.DraftTimecode)

	assert.Equal(t, NotFound, s.SetTyping("ghost", true, nil))
}

func TestUpsertTag(t *testing.T) {
	ts := &memTags{loaded: []tags.Tag{{ID: "lighting", Name: "Lighting", Color: "#fff"}}}
	s := newTestStore(t, ts)
	ctx := context.Background()

	tag, res := s.UpsertTag(ctx, tags.Tag{Name: "Follow Spot"})
	require.Equal(t, Ok, res)
	assert.Equal(t, tags.Tag{ID: "follow-spot", Name: "Follow Spot", Color: tags.DefaultColor}, tag)

	tag, _ = s.UpsertTag(ctx, tags.Tag{Name: "lighting", Color: "#000"})
	assert.Equal(t, "lighting-2", tag.ID, "derived id must not take over another tag")

	tag, _ = s.UpsertTag(ctx, tags.Tag{ID: "lighting", Name: "LX", Color: "#123456"})
	assert.Equal(t, "lighting", tag.ID)

	_, res = s.UpsertTag(ctx, tags.Tag{ID: "x", Name: " "})
	assert.Equal(t, Invalid, res)

	got := s.Tags()
	require.Len(t, got, 3)
	assert.Equal(t, tags.Tag{ID: "lighting", Name: "LX", Color: "#123456"}, got[0])
	assert.Equal(t, "follow-spot", got[1].ID)
	assert.Equal(t, "lighting-2", got[2].ID)

	require.Len(t, ts.saves, 3, "every change is saved")
	assert.Equal(t, got, ts.saves[2])
}

func TestDeleteTag(t *testing.T) {
	ts := &memTags{loaded: tags.Defaults()}
	s := newTestStore(t, ts)
	ctx := context.Background()

	assert.Equal(t, Ok, s.DeleteTag(ctx, "sound"))
	assert.Len(t, s.Tags(), len(tags.Defaults())-1)
	assert.Equal(t, NotFound, s.DeleteTag(ctx, "sound"))
	assert.Len(t, ts.saves, 1, "no save for a missing tag")
}

func TestTagSaveFailureKeepsChange(t *testing.T) {
	ts := &memTags{loaded: []tags.Tag{}, saveErr: errors.New("disk full")}
	s := newTestStore(t, ts)

	_, res := s.UpsertTag(context.Background(), tags.Tag{Name: "Sound"})
	assert.Equal(t, Ok, res)
	assert.Len(t, s.Tags(), 1)
}
