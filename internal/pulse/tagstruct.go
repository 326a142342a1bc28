package pulse

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// Type bytes that prefix every value in a tagstruct.
const (
	tagString        = 't'
	tagStringNull    = 'N'
	tagU32           = 'L'
	tagSampleSpec    = 'a'
	tagArbitrary     = 'x'
	tagBooleanTrue   = '1'
	tagBooleanFalse  = '0'
	tagChannelMap    = 'm'
	tagCVolume       = 'v'
	tagPropList      = 'P'
	maxChannels      = 32
	invalidIndex     = 0xFFFFFFFF
	volumeNorm       = 0x10000
	maxPropListValue = 64 * 1024
)

// ErrMalformed is returned when a reply cannot be decoded.
var ErrMalformed = errors.New("malformed tagstruct")

// SampleSpec describes a sample format, rate and channel count.
type SampleSpec struct {
	Format   uint8
	Channels uint8
	Rate     uint32
}

// ChannelMap lists the position of each channel.
type ChannelMap []uint8

// CVolume holds one volume per channel. volumeNorm is 100%.
type CVolume []uint32

// PropList is a set of string properties. Values are sent NUL-terminated.
type PropList map[string]string

// Encoder builds a tagstruct payload.
type Encoder struct {
	buf bytes.Buffer
}

func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

func (e *Encoder) PutU32(v uint32) {
	e.buf.WriteByte(tagU32)
	e.u32(v)
}

func (e *Encoder) PutBool(v bool) {
	if v {
		e.buf.WriteByte(tagBooleanTrue)
	} else {
		e.buf.WriteByte(tagBooleanFalse)
	}
}

// PutString writes s, or a null string when s is empty.
func (e *Encoder) PutString(s string) {
	if s == "" {
		e.buf.WriteByte(tagStringNull)
		return
	}
	e.buf.WriteByte(tagString)
	e.buf.WriteString(s)
	e.buf.WriteByte(0)
}

func (e *Encoder) PutArbitrary(p []byte) {
	e.buf.WriteByte(tagArbitrary)
	e.u32(uint32(len(p)))
	e.buf.Write(p)
}

func (e *Encoder) PutSampleSpec(s SampleSpec) {
	e.buf.WriteByte(tagSampleSpec)
	e.buf.WriteByte(s.Format)
	e.buf.WriteByte(s.Channels)
	e.u32(s.Rate)
}

func (e *Encoder) PutChannelMap(m ChannelMap) {
	e.buf.WriteByte(tagChannelMap)
	e.buf.WriteByte(uint8(len(m)))
	e.buf.Write(m)
}

func (e *Encoder) PutCVolume(v CVolume) {
	e.buf.WriteByte(tagCVolume)
	e.buf.WriteByte(uint8(len(v)))
	for _, c := range v {
		e.u32(c)
	}
}

// PutPropList writes keys in sorted order so payloads are reproducible.
func (e *Encoder) PutPropList(p PropList) {
	e.buf.WriteByte(tagPropList)
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := append([]byte(p[k]), 0)
		e.PutString(k)
		e.PutU32(uint32(len(v)))
		e.PutArbitrary(v)
	}
	e.buf.WriteByte(tagStringNull)
}

func (e *Encoder) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

// Decoder reads values from a tagstruct payload in order.
type Decoder struct {
	data []byte
	pos  int
}

func NewDecoder(data []byte) *Decoder { return &Decoder{data: data} }

// EOF reports whether every value has been consumed.
func (d *Decoder) EOF() bool { return d.pos >= len(d.data) }

func (d *Decoder) expect(tag byte) error {
	if d.pos >= len(d.data) {
		return fmt.Errorf("%w: want %q, got end of data", ErrMalformed, tag)
	}
	if got := d.data[d.pos]; got != tag {
		return fmt.Errorf("%w: want %q, got %q at offset %d", ErrMalformed, tag, got, d.pos)
	}
	d.pos++
	return nil
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, fmt.Errorf("%w: short read of %d bytes at offset %d", ErrMalformed, n, d.pos)
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) rawU32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *Decoder) GetU32() (uint32, error) {
	if err := d.expect(tagU32); err != nil {
		return 0, err
	}
	return d.rawU32()
}

func (d *Decoder) GetBool() (bool, error) {
	if d.pos >= len(d.data) {
		return false, fmt.Errorf("%w: want boolean, got end of data", ErrMalformed)
	}
	switch d.data[d.pos] {
	case tagBooleanTrue:
		d.pos++
		return true, nil
	case tagBooleanFalse:
		d.pos++
		return false, nil
	default:
		return false, fmt.Errorf("%w: want boolean, got %q at offset %d", ErrMalformed, d.data[d.pos], d.pos)
	}
}

// GetString reads a string. A null string decodes as "".
func (d *Decoder) GetString() (string, error) {
	if d.pos >= len(d.data) {
		return "", fmt.Errorf("%w: want string, got end of data", ErrMalformed)
	}
	switch d.data[d.pos] {
	case tagStringNull:
		d.pos++
		return "", nil
	case tagString:
		d.pos++
		end := bytes.IndexByte(d.data[d.pos:], 0)
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated string at offset %d", ErrMalformed, d.pos)
		}
		s := string(d.data[d.pos : d.pos+end])
		d.pos += end + 1
		return s, nil
	default:
		return "", fmt.Errorf("%w: want string, got %q at offset %d", ErrMalformed, d.data[d.pos], d.pos)
	}
}

func (d *Decoder) GetArbitrary() ([]byte, error) {
	if err := d.expect(tagArbitrary); err != nil {
		return nil, err
	}
	n, err := d.rawU32()
	if err != nil {
		return nil, err
	}
	return d.take(int(n))
}

func (d *Decoder) GetSampleSpec() (SampleSpec, error) {
	if err := d.expect(tagSampleSpec); err != nil {
		return SampleSpec{}, err
	}
	b, err := d.take(2)
	if err != nil {
		return SampleSpec{}, err
	}
	rate, err := d.rawU32()
	if err != nil {
		return SampleSpec{}, err
	}
	return SampleSpec{Format: b[0], Channels: b[1], Rate: rate}, nil
}

func (d *Decoder) GetChannelMap() (ChannelMap, error) {
	if err := d.expect(tagChannelMap); err != nil {
		return nil, err
	}
	n, err := d.take(1)
	if err != nil {
		return nil, err
	}
	if n[0] > maxChannels {
		return nil, fmt.Errorf("%w: channel map with %d channels", ErrMalformed, n[0])
	}
	b, err := d.take(int(n[0]))
	if err != nil {
		return nil, err
	}
	return append(ChannelMap(nil), b...), nil
}

func (d *Decoder) GetCVolume() (CVolume, error) {
	if err := d.expect(tagCVolume); err != nil {
		return nil, err
	}
	n, err := d.take(1)
	if err != nil {
		return nil, err
	}
	if n[0] > maxChannels {
		return nil, fmt.Errorf("%w: volume with %d channels", ErrMalformed, n[0])
	}
	v := make(CVolume, n[0])
	for i := range v {
		if v[i], err = d.rawU32(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (d *Decoder) GetPropList() (PropList, error) {
	if err := d.expect(tagPropList); err != nil {
		return nil, err
	}
	p := PropList{}
	for {
		key, err := d.GetString()
		if err != nil {
			return nil, err
		}
		if key == "" {
			return p, nil
		}
		n, err := d.GetU32()
		if err != nil {
			return nil, err
		}
		if n > maxPropListValue {
			return nil, fmt.Errorf("%w: property %q too large", ErrMalformed, key)
		}
		v, err := d.GetArbitrary()
		if err != nil {
			return nil, err
		}
		if uint32(len(v)) != n {
			return nil, fmt.Errorf("%w: property %q length mismatch", ErrMalformed, key)
		}
		p[key] = string(bytes.TrimRight(v, "\x00"))
	}
}
