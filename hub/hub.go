package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"tangled.sh/cuesheet/export"
	"tangled.sh/cuesheet/show"
	"tangled.sh/cuesheet/tags"
	"tangled.sh/cuesheet/timecode"
)

var ErrStopped = errors.New("hub stopped")

// DefaultClientBuffer is the number of outbound messages a client may fall
// behind by before it is disconnected.
const DefaultClientBuffer = 256

// Client is one connected session. The hub writes encoded events to its
// outbox; the transport drains it. The outbox is closed when the hub drops
// the client.
type Client struct {
	ID   string
	send chan []byte
}

func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Client{ID: id, send: make(chan []byte, buffer)}
}

func (c *Client) Outbox() <-chan []byte {
	return c.send
}

// State is the show snapshot plus the time source status.
type State struct {
	show.Snapshot
	Status Status `json:"status"`
}

// Hub owns the show store. Every mutation, time source update and client
// event runs on the single goroutine started by Run, to completion and in
// arrival order, and the broadcasts it causes are queued to clients before
// the next event is taken.
type Hub struct {
	store *show.Store
	l     *slog.Logger
	now   func() time.Time

	events chan func(ctx context.Context)
	done   chan struct{}

	clients map[string]*Client
	order   []string
	status  Status
}

type Option func(*Hub)

func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		h.now = now
	}
}

func WithStatus(st Status) Option {
	return func(h *Hub) {
		h.status = st
	}
}

func New(store *show.Store, l *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		store:   store,
		l:       l,
		now:     time.Now,
		events:  make(chan func(context.Context), 1024),
		done:    make(chan struct{}),
		clients: make(map[string]*Client),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Run processes events until ctx ends, then closes every client outbox.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	defer func() {
		for _, id := range h.order {
			close(h.clients[id].send)
		}
		h.clients = map[string]*Client{}
		h.order = nil
	}()

	h.l.Info("hub running")
	for {
		select {
		case <-ctx.Done():
			h.l.Info("hub stopping", "clients", len(h.clients))
			return nil
		case fn := <-h.events:
			fn(ctx)
		}
	}
}

func (h *Hub) post(fn func(ctx context.Context)) error {
	select {
	case <-h.done:
		return ErrStopped
	default:
	}
	select {
	case h.events <- fn:
		return nil
	case <-h.done:
		return ErrStopped
	}
}

// call runs fn on the loop and waits for it.
func (h *Hub) call(ctx context.Context, fn func(ctx context.Context)) error {
	finished := make(chan struct{})
	err := h.post(func(ctx context.Context) {
		defer close(finished)
		fn(ctx)
	})
	if err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func encode(typ string, data any) ([]byte, error) {
	return json.Marshal(outbound{Type: typ, Data: data})
}

func (h *Hub) sendTo(c *Client, typ string, data any) {
	if h.clients[c.ID] != c {
		return
	}
	msg, err := encode(typ, data)
	if err != nil {
		h.l.Error("failed to encode event", "type", typ, "err", err)
		return
	}
	select {
	case c.send <- msg:
	default:
		h.l.Warn("client outbox full, disconnecting", "client", c.ID)
		h.drop(c.ID)
	}
}

func (h *Hub) broadcast(typ string, data any) {
	msg, err := encode(typ, data)
	if err != nil {
		h.l.Error("failed to encode event", "type", typ, "err", err)
		return
	}

	var slow []string
	for _, id := range h.order {
		select {
		case h.clients[id].send <- msg:
		default:
			slow = append(slow, id)
		}
	}

	for _, id := range slow {
		h.l.Warn("client outbox full, disconnecting", "client", id)
		h.drop(id)
	}
}

// drop removes a client, closes its outbox and tells everyone else.
func (h *Hub) drop(id string) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	for i, o := range h.order {
		if o == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	close(c.send)

	u, res := h.store.RemoveUser(id)
	if res != show.Ok {
		return
	}
	h.l.Info("user left", "client", id, "name", u.DisplayName, "count", h.store.UserCount())
	h.broadcast(UserLeft, presenceData{Name: u.DisplayName, Count: h.store.UserCount()})
	h.broadcast(UsersUpdate, h.store.Users())
}

// Join registers c, sends it the full current state, then announces it.
func (h *Hub) Join(c *Client) error {
	return h.post(func(ctx context.Context) {
		if _, ok := h.clients[c.ID]; ok {
			return
		}
		h.clients[c.ID] = c
		h.order = append(h.order, c.ID)
		u := h.store.AddUser(c.ID)

		h.sendTo(c, UserInfo, userInfoData{ID: u.ID, DisplayName: u.DisplayName})
		h.sendTo(c, TimecodeUpdate, h.store.Timecode())
		h.sendTo(c, TimeModeUpdate, timeModeData{Mode: h.store.TimeMode().String()})
		h.sendTo(c, NotesUpdate, h.store.Notes())
		h.sendTo(c, UsersUpdate, h.store.Users())
		h.sendTo(c, TagsUpdate, h.store.Tags())
		h.sendTo(c, SystemStatus, h.status)

		h.l.Info("user joined", "client", c.ID, "name", u.DisplayName, "count", h.store.UserCount())
		h.broadcast(UserJoined, presenceData{Name: u.DisplayName, Count: h.store.UserCount()})
		h.broadcast(UsersUpdate, h.store.Users())
	})
}

// Leave removes a client. Leaving twice is a no-op.
func (h *Hub) Leave(id string) error {
	return h.post(func(ctx context.Context) {
		h.drop(id)
	})
}

// SetTimecode records a new show position and broadcasts it.
func (h *Hub) SetTimecode(tc timecode.Timecode) error {
	return h.post(func(ctx context.Context) {
		if !h.store.SetTimecode(tc) {
			h.l.Debug("dropping invalid timecode", "timecode", tc)
			return
		}
		h.broadcast(TimecodeUpdate, tc)
	})
}

func (h *Hub) SetStatus(st Status) error {
	return h.post(func(ctx context.Context) {
		h.status = st
		h.broadcast(SystemStatus, st)
	})
}

// Snapshot returns the current state, taken on the loop.
func (h *Hub) Snapshot(ctx context.Context) (State, error) {
	var st State
	err := h.call(ctx, func(ctx context.Context) {
		st = State{Snapshot: h.store.Snapshot(), Status: h.status}
	})
	return st, err
}

// Export encodes the current notes, taken on the loop.
func (h *Hub) Export(ctx context.Context, format export.Format) (export.File, error) {
	var f export.File
	var encErr error
	err := h.call(ctx, func(ctx context.Context) {
		f, encErr = h.export(format)
	})
	if err != nil {
		return export.File{}, err
	}
	return f, encErr
}

func (h *Hub) export(format export.Format) (export.File, error) {
	f, err := export.Encode(format, h.store.Snapshot(), h.now())
	if err != nil {
		return export.File{}, err
	}
	h.l.Info("generated export", "format", format, "file", f.Filename, "size", humanize.Bytes(uint64(len(f.Data))))
	return f, nil
}

// Handle decodes one inbound frame from a client and queues it. Malformed
// frames are logged and dropped.
func (h *Hub) Handle(clientID string, raw []byte) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.l.Warn("invalid frame", "client", clientID, "err", err)
		return nil
	}

	apply, err := h.decode(clientID, env)
	if err != nil {
		h.l.Warn("invalid event", "client", clientID, "type", env.Type, "err", err)
		return nil
	}

	return h.post(func(ctx context.Context) {
		c, ok := h.clients[clientID]
		if !ok {
			return
		}
		apply(ctx, c)
	})
}

func unmarshal(env Envelope, v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return json.Unmarshal(env.Data, v)
}

type handler func(ctx context.Context, c *Client)

func (h *Hub) decode(clientID string, env Envelope) (handler, error) {
	switch env.Type {
	case NoteSubmit:
		var d noteSubmitData
		if err := unmarshal(env, &d); err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *Client) { h.submitNote(c, d) }, nil

	case NoteUpdateTags:
		var d noteUpdateTagsData
		if err := unmarshal(env, &d); err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *Client) {
			if h.store.UpdateNoteTags(d.NoteID, d.Tags) == show.Ok {
				h.broadcast(NotesUpdate, h.store.Notes())
			}
		}, nil

	case CommentSubmit:
		var d commentSubmitData
		if err := unmarshal(env, &d); err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *Client) {
			if _, res := h.store.AddComment(d.NoteID, c.ID, d.Text); res == show.Ok {
				h.broadcast(NotesUpdate, h.store.Notes())
			}
		}, nil

	case CreateTag:
		var d createTagData
		if err := unmarshal(env, &d); err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *Client) {
			t, res := h.store.UpsertTag(ctx, tags.Tag{ID: d.ID, Name: d.Name, Color: d.Color})
			if res != show.Ok {
				return
			}
			h.l.Info("tag saved", "client", c.ID, "tag", t.ID)
			h.broadcast(TagsUpdate, h.store.Tags())
		}, nil

	case DeleteTag:
		var d deleteTagData
		if err := unmarshal(env, &d); err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *Client) {
			if h.store.DeleteTag(ctx, d.TagID) != show.Ok {
				return
			}
			h.l.Info("tag deleted", "client", c.ID, "tag", d.TagID)
			h.broadcast(TagsUpdate, h.store.Tags())
		}, nil

	case TypingStart:
		var d typingStartData
		if err := unmarshal(env, &d); err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *Client) {
			override := d.Timecode.resolve(h.store.Timecode())
			if h.store.SetTyping(c.ID, true, override) == show.Ok {
				h.broadcast(UsersUpdate, h.store.Users())
			}
		}, nil

	case TypingStop:
		return func(ctx context.Context, c *Client) {
			if h.store.SetTyping(c.ID, false, nil) == show.Ok {
				h.broadcast(UsersUpdate, h.store.Users())
			}
		}, nil

	case TimeModeChange:
		var d timeModeChangeData
		if err := unmarshal(env, &d); err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *Client) {
			mode, ok := show.ParseTimeMode(d.Mode)
			if !ok {
				return
			}
			// reselecting the current mode still broadcasts, as an ack
			if h.store.SetTimeMode(mode) {
				h.l.Info("time mode changed", "client", c.ID, "mode", mode)
			}
			h.broadcast(TimeModeUpdate, timeModeData{Mode: mode.String()})
		}, nil

	case UserNameChange:
		var d userNameChangeData
		if err := unmarshal(env, &d); err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *Client) { h.rename(c, d.NewName) }, nil

	case ExportRequest:
		var d exportRequestData
		if err := unmarshal(env, &d); err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *Client) {
			format, err := export.ParseFormat(d.Format)
			if err != nil {
				h.l.Warn("export rejected", "client", c.ID, "err", err)
				return
			}
			f, err := h.export(format)
			if err != nil {
				h.l.Error("export failed", "client", c.ID, "err", err)
				return
			}
			h.sendTo(c, ExportData, f)
		}, nil
	}

	return nil, fmt.Errorf("unknown event type %q", env.Type)
}

func (h *Hub) submitNote(c *Client, d noteSubmitData) {
	n, res := h.store.SubmitNote(show.NoteInput{
		AuthorUserID: c.ID,
		Text:         d.Text,
		LXCue:        d.LXCue,
		TagIDs:       d.TagIDs,
		Timecode:     d.Timecode.resolve(h.store.Timecode()),
	})
	if res != show.Ok {
		h.l.Debug("note rejected", "client", c.ID, "result", res)
		return
	}

	h.l.Info("note added", "client", c.ID, "note", n.ID, "timecode", n.Timecode.String())
	h.sendTo(c, NoteAdded, n)
	h.broadcast(NotesUpdate, h.store.Notes())
}

func (h *Hub) rename(c *Client, name string) {
	old, _ := h.store.User(c.ID)
	if err := h.store.RenameUser(c.ID, name); err != nil {
		h.l.Info("rename rejected", "client", c.ID, "name", name, "err", err)
		h.sendTo(c, NameChangeError, messageData{Message: err.Error()})
		return
	}

	u, _ := h.store.User(c.ID)
	h.l.Info("user renamed", "client", c.ID, "from", old.DisplayName, "to", u.DisplayName)
	h.sendTo(c, NameChangeSuccess, messageData{Message: fmt.Sprintf("Name changed to %s", u.DisplayName)})
	h.sendTo(c, UserInfo, userInfoData{ID: u.ID, DisplayName: u.DisplayName})
	h.broadcast(UsersUpdate, h.store.Users())
	h.broadcast(NotesUpdate, h.store.Notes())
}
