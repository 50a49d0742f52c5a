package midi

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func collect(p *Parser, b []byte) []Message {
	var out []Message
	p.Feed(b, func(m Message) {
		out = append(out, Message{Status: m.Status, Data: bytes.Clone(m.Data)})
	})
	return out
}

func TestParser(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []Message
	}{
		{
			name: "quarter frames",
			in:   []byte{0xF1, 0x01, 0xF1, 0x12},
			want: []Message{{0xF1, []byte{0x01}}, {0xF1, []byte{0x12}}},
		},
		{
			name: "note on with running status",
			in:   []byte{0x90, 0x40, 0x7F, 0x41, 0x7F},
			want: []Message{{0x90, []byte{0x40, 0x7F}}, {0x90, []byte{0x41, 0x7F}}},
		},
		{
			name: "program change is one data byte",
			in:   []byte{0xC3, 0x05, 0x06},
			want: []Message{{0xC3, []byte{0x05}}, {0xC3, []byte{0x06}}},
		},
		{
			name: "realtime inside a message keeps it intact",
			in:   []byte{0x90, 0x40, 0xF8, 0x7F},
			want: []Message{{0xF8, nil}, {0x90, []byte{0x40, 0x7F}}},
		},
		{
			name: "system common cancels running status",
			in:   []byte{0x90, 0x40, 0x7F, 0xF1, 0x23, 0x41, 0x7F},
			want: []Message{{0x90, []byte{0x40, 0x7F}}, {0xF1, []byte{0x23}}},
		},
		{
			name: "full frame sysex",
			in:   []byte{0xF0, 0x7F, 0x7F, 0x01, 0x01, 0x21, 0x02, 0x03, 0x04, 0xF7},
			want: []Message{{0xF0, []byte{0x7F, 0x7F, 0x01, 0x01, 0x21, 0x02, 0x03, 0x04}}},
		},
		{
			name: "interrupted sysex is dropped",
			in:   []byte{0xF0, 0x7F, 0x01, 0xF1, 0x35},
			want: []Message{{0xF1, []byte{0x35}}},
		},
		{
			name: "leading data bytes are ignored",
			in:   []byte{0x12, 0x34, 0xF1, 0x70},
			want: []Message{{0xF1, []byte{0x70}}},
		},
		{
			name: "tune request has no data",
			in:   []byte{0xF6},
			want: []Message{{0xF6, nil}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Parser
			assert.Equal(t, tt.want, collect(&p, tt.in))
		})
	}
}

func TestParserSplitAcrossReads(t *testing.T) {
	var p Parser
	var got []Message
	for _, chunk := range [][]byte{{0xF1}, {0x45, 0xF0, 0x7F}, {0x7F, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00}, {0xF7}} {
		got = append(got, collect(&p, chunk)...)
	}

	assert.Equal(t, []Message{
		{0xF1, []byte{0x45}},
		{0xF0, []byte{0x7F, 0x7F, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00}},
	}, got)
}

func TestFullFrame(t *testing.T) {
	hr, mn, sc, fr, ok := FullFrame(Message{Status: StatusSysEx, Data: []byte{0x7F, 0x10, 0x01, 0x01, 0x61, 0x02, 0x03, 0x04}})
	assert.True(t, ok)
	assert.Equal(t, []byte{0x61, 0x02, 0x03, 0x04}, []byte{hr, mn, sc, fr})

	// user bits message, same sub-id 1 but sub-id 2 of 2
	_, _, _, _, ok = FullFrame(Message{Status: StatusSysEx, Data: []byte{0x7F, 0x10, 0x01, 0x02, 0, 0, 0, 0}})
	assert.False(t, ok)

	_, _, _, _, ok = FullFrame(Message{Status: StatusQuarterFrame, Data: []byte{0x01}})
	assert.False(t, ok)
}
