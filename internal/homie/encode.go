package homie

import (
	"bytes"
	"strconv"
)

var (
	strTrue  = []byte("true")
	strFalse = []byte("false")
)

// WriteBytes appends b to the payload.
func (p *Packet) WriteBytes(b []byte) {
	n := copy(p.payload[p.payloadLen:], b)
	p.payloadLen += n
	if n < len(b) {
		p.truncated = true
	}
}

// WriteString appends s to the payload.
func (p *Packet) WriteString(s string) {
	n := copy(p.payload[p.payloadLen:], s)
	p.payloadLen += n
	if n < len(s) {
		p.truncated = true
	}
}

func (p *Packet) WriteInt(v int64) {
	p.WriteBytes(strconv.AppendInt(p.scratch[:0], v, 10))
}

func (p *Packet) WriteUint(v uint64) {
	p.WriteBytes(strconv.AppendUint(p.scratch[:0], v, 10))
}

// WriteBool appends the literal true or false.
func (p *Packet) WriteBool(v bool) {
	if v {
		p.WriteBytes(strTrue)
		return
	}
	p.WriteBytes(strFalse)
}

// WriteFixed appends a fixed point value scaled by 10^decimals,
// e.g. WriteFixed(-1234, 2) writes "-12.34".
func (p *Packet) WriteFixed(v int64, decimals int) {
	if decimals <= 0 {
		p.WriteInt(v)
		return
	}
	var u uint64
	if v < 0 {
		p.WriteString("-")
		u = uint64(-v)
	} else {
		u = uint64(v)
	}
	div := uint64(1)
	for i := 0; i < decimals; i++ {
		div *= 10
	}
	p.WriteUint(u / div)
	p.WriteString(".")
	frac := strconv.AppendUint(p.scratch[:0], u%div, 10)
	for i := len(frac); i < decimals; i++ {
		p.WriteString("0")
	}
	p.WriteBytes(frac)
}

// WriteDuration appends seconds as H:MM:SS.
func (p *Packet) WriteDuration(seconds uint64) {
	m := seconds / 60
	p.WriteUint(m / 60)
	p.WriteString(":")
	p.write2(m % 60)
	p.WriteString(":")
	p.write2(seconds % 60)
}

func (p *Packet) write2(v uint64) {
	if v < 10 {
		p.WriteString("0")
	}
	p.WriteUint(v)
}

// ParseBool accepts exactly the payloads true and false.
func ParseBool(payload []byte) (value, ok bool) {
	switch {
	case bytes.Equal(payload, strTrue):
		return true, true
	case bytes.Equal(payload, strFalse):
		return false, true
	}
	return false, false
}
