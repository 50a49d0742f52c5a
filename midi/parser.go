package midi

const (
	StatusSysEx        = 0xF0
	StatusQuarterFrame = 0xF1
	StatusEndOfSysEx   = 0xF7

	maxSysEx = 256
)

// Message is one complete MIDI message. SysEx messages carry the bytes
// between F0 and F7 in Data.
type Message struct {
	Status byte
	Data   []byte
}

// Parser splits a raw MIDI byte stream into messages. It handles running
// status, realtime bytes interleaved anywhere, and SysEx framing. It is not
// safe for concurrent use.
type Parser struct {
	running byte
	status  byte
	need    int
	buf     []byte
	sysex   bool
}

func dataLen(status byte) int {
	switch {
	case status >= 0x80 && status < 0xC0, status >= 0xE0 && status < 0xF0:
		return 2
	case status >= 0xC0 && status < 0xE0:
		return 1
	case status == 0xF1, status == 0xF3:
		return 1
	case status == 0xF2:
		return 2
	}
	return 0
}

// Feed consumes b and calls fn for each message completed. Data slices
// passed to fn are only valid during the call.
func (p *Parser) Feed(b []byte, fn func(Message)) {
	for _, c := range b {
		switch {
		case c >= 0xF8:
			fn(Message{Status: c})

		case c >= 0x80:
			if p.sysex {
				p.sysex = false
				if c == StatusEndOfSysEx {
					fn(Message{Status: StatusSysEx, Data: p.buf})
					p.buf = p.buf[:0]
					continue
				}
				// any other status aborts the SysEx
				p.buf = p.buf[:0]
			}

			switch c {
			case StatusSysEx:
				p.sysex = true
				p.running = 0
				p.status = 0
				p.buf = p.buf[:0]
				continue
			case StatusEndOfSysEx:
				continue
			}

			if c < 0xF0 {
				p.running = c
			} else {
				p.running = 0
			}

			p.need = dataLen(c)
			if p.need == 0 {
				p.status = 0
				fn(Message{Status: c})
				continue
			}
			p.status = c
			p.buf = p.buf[:0]

		default:
			if p.sysex {
				if len(p.buf) < maxSysEx {
					p.buf = append(p.buf, c)
				}
				continue
			}

			if p.status == 0 {
				if p.running == 0 {
					continue
				}
				p.status = p.running
				p.need = dataLen(p.running)
				p.buf = p.buf[:0]
			}

			p.buf = append(p.buf, c)
			if len(p.buf) == p.need {
				fn(Message{Status: p.status, Data: p.buf})
				p.status = 0
				p.buf = p.buf[:0]
			}
		}
	}
}

// FullFrame extracts hours (with rate bits), minutes, seconds and frames
// from an MTC full-frame SysEx body: 7F <device> 01 01 hr mn sc fr.
func FullFrame(m Message) (hr, mn, sc, fr byte, ok bool) {
	d := m.Data
	if m.Status != StatusSysEx || len(d) != 8 || d[0] != 0x7F || d[2] != 0x01 || d[3] != 0x01 {
		return 0, 0, 0, 0, false
	}
	return d[4], d[5], d[6], d[7], true
}
