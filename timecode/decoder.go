package timecode

// StatusQuarterFrame is the MIDI status byte of an MTC quarter-frame message.
const StatusQuarterFrame = 0xF1

// SequencePolicy decides what the decoder does when a fragment arrives out
// of order.
type SequencePolicy int

const (
	// ResetOnGap drops the partial value on a sequence break and waits for
	// the next slot 0. A value is only produced from 8 in-order fragments.
	ResetOnGap SequencePolicy = iota
	// KeepStale writes every fragment and decodes whenever slot 7 arrives,
	// using whatever the other slots last held.
	KeepStale
)

// Decoder assembles MTC quarter-frame fragments into Timecodes. It is not
// safe for concurrent use.
type Decoder struct {
	policy SequencePolicy
	slots  [8]byte
	prev   int // last accepted slot, -1 when waiting for slot 0

	last    Timecode
	hasLast bool
}

func NewDecoder(policy SequencePolicy) *Decoder {
	return &Decoder{policy: policy, prev: -1}
}

// Reset discards any partial value. The last emitted Timecode is kept so
// de-duplication still applies after the reset.
func (d *Decoder) Reset() {
	d.slots = [8]byte{}
	d.prev = -1
}

// Last returns the most recently decoded Timecode.
func (d *Decoder) Last() (Timecode, bool) {
	return d.last, d.hasLast
}

// HandleMessage accepts a raw two-byte MIDI message. Anything other than a
// quarter-frame status is ignored.
func (d *Decoder) HandleMessage(status, data byte) (Timecode, bool) {
	if status != StatusQuarterFrame {
		return Timecode{}, false
	}
	return d.QuarterFrame(data>>4, data&0x0F)
}

// QuarterFrame writes one fragment. It returns a Timecode when slot 7
// completes a value whose position differs from the previous one.
func (d *Decoder) QuarterFrame(slot, nibble byte) (Timecode, bool) {
	if slot > 7 {
		return Timecode{}, false
	}
	s := int(slot)

	if d.policy == ResetOnGap {
		expected := 0
		if d.prev >= 0 {
			expected = (d.prev + 1) % 8
		}
		if s != expected {
			d.Reset()
			if s != 0 {
				return Timecode{}, false
			}
		}
	}

	d.slots[s] = nibble & 0x0F
	d.prev = s

	if s != 7 {
		return Timecode{}, false
	}

	a := d.slots
	hoursAndRate := a[7]<<4 | a[6]
	tc := Timecode{
		Frames:    int(a[1]<<4 | a[0]),
		Seconds:   int(a[3]<<4 | a[2]),
		Minutes:   int(a[5]<<4 | a[4]),
		Hours:     int(hoursAndRate & 0x1F),
		FrameRate: RateFromCode((hoursAndRate >> 5) & 0x03),
		Source:    External,
	}
	return d.emit(tc)
}

// FullFrame applies an MTC full-frame SysEx payload (hr, mn, sc, fr), where
// hr carries the rate code in bits 5-6 like quarter-frame slot 7.
func (d *Decoder) FullFrame(hr, mn, sc, fr byte) (Timecode, bool) {
	d.Reset()
	tc := Timecode{
		Hours:     int(hr & 0x1F),
		Minutes:   int(mn & 0x3F),
		Seconds:   int(sc & 0x3F),
		Frames:    int(fr & 0x1F),
		FrameRate: RateFromCode((hr >> 5) & 0x03),
		Source:    External,
	}
	return d.emit(tc)
}

func (d *Decoder) emit(tc Timecode) (Timecode, bool) {
	// corrupted fragments can assemble out-of-range fields
	if !tc.Valid() {
		return Timecode{}, false
	}

	changed := !d.hasLast || !d.last.SamePosition(tc)
	d.last = tc
	d.hasLast = true
	return tc, changed
}
