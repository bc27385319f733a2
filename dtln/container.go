package dtln

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Weight container layout: a fixed header followed by the raw tensors as
// little-endian float64 values in a fixed order. The tensor sizes are fully
// determined by the header, so the container carries no per-tensor framing.
const (
	containerVersion = 1

	flagLogMagNorm = 1 << 0

	// Header sanity limits. Anything beyond these is a corrupt or hostile
	// file, not a real model.
	maxFrameLen = 1 << 16
	maxUnits    = 1 << 14
	maxRate     = 1 << 20
)

var containerMagic = [4]byte{'D', 'T', 'L', 'N'}

type containerHeader struct {
	Magic       [4]byte
	Version     uint16
	Flags       uint16
	SampleRate  uint32
	FrameLen    uint32
	Hop         uint32
	Units       uint32
	EncoderSize uint32
}

// Load reads a weight container from path and returns the validated model.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dtln: open weights: %w", err)
	}
	defer f.Close()

	m, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("dtln: %s: %w", path, err)
	}

	return m, nil
}

// Save writes the model's weight container to path.
func Save(path string, m *Model) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dtln: create weights: %w", err)
	}

	w := bufio.NewWriter(f)
	if err := Write(w, m); err != nil {
		f.Close()
		return fmt.Errorf("dtln: %s: %w", path, err)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("dtln: %s: %w", path, err)
	}

	return f.Close()
}

// Read parses a weight container from r.
func Read(r io.Reader) (*Model, error) {
	var hdr containerHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadContainer, err)
	}

	if hdr.Magic != containerMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadContainer, hdr.Magic[:])
	}

	if hdr.Version != containerVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadContainer, hdr.Version)
	}

	if hdr.FrameLen == 0 || hdr.FrameLen > maxFrameLen ||
		hdr.Units == 0 || hdr.Units > maxUnits ||
		hdr.EncoderSize == 0 || hdr.EncoderSize > maxFrameLen ||
		hdr.SampleRate == 0 || hdr.SampleRate > maxRate ||
		hdr.Hop == 0 || hdr.Hop > hdr.FrameLen {
		return nil, fmt.Errorf("%w: implausible header %+v", ErrBadContainer, hdr)
	}

	p := Params{
		SampleRate:  int(hdr.SampleRate),
		FrameLen:    int(hdr.FrameLen),
		Hop:         int(hdr.Hop),
		Units:       int(hdr.Units),
		EncoderSize: int(hdr.EncoderSize),
		LogMagNorm:  hdr.Flags&flagLogMagNorm != 0,
	}

	bins := p.Bins()
	units := p.Units
	enc := p.EncoderSize

	rd := &tensorReader{r: r}

	if p.LogMagNorm {
		p.Spectral.Norm = &LayerNorm{
			Gamma: rd.tensor(bins),
			Beta:  rd.tensor(bins),
		}
	}

	p.Spectral.LSTM[0] = rd.lstm(bins, units)
	p.Spectral.LSTM[1] = rd.lstm(units, units)
	p.Spectral.Mask = rd.dense(units, bins, true)

	p.Temporal.Encoder = rd.dense(p.FrameLen, enc, false)
	p.Temporal.Norm = LayerNorm{
		Gamma: rd.tensor(enc),
		Beta:  rd.tensor(enc),
	}
	p.Temporal.LSTM[0] = rd.lstm(enc, units)
	p.Temporal.LSTM[1] = rd.lstm(units, units)
	p.Temporal.Mask = rd.dense(units, enc, true)
	p.Temporal.Decoder = rd.dense(enc, p.FrameLen, false)

	if rd.err != nil {
		return nil, fmt.Errorf("%w: tensors: %v", ErrBadContainer, rd.err)
	}

	return New(p)
}

// Write serializes the model's weight container to w.
func Write(w io.Writer, m *Model) error {
	p := &m.p

	var flags uint16
	if p.LogMagNorm {
		flags |= flagLogMagNorm
	}

	hdr := containerHeader{
		Magic:       containerMagic,
		Version:     containerVersion,
		Flags:       flags,
		SampleRate:  uint32(p.SampleRate),
		FrameLen:    uint32(p.FrameLen),
		Hop:         uint32(p.Hop),
		Units:       uint32(p.Units),
		EncoderSize: uint32(p.EncoderSize),
	}

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("header: %w", err)
	}

	wr := &tensorWriter{w: w}

	if p.Spectral.Norm != nil {
		wr.tensor(p.Spectral.Norm.Gamma)
		wr.tensor(p.Spectral.Norm.Beta)
	}

	wr.lstm(&p.Spectral.LSTM[0])
	wr.lstm(&p.Spectral.LSTM[1])
	wr.dense(&p.Spectral.Mask)

	wr.dense(&p.Temporal.Encoder)
	wr.tensor(p.Temporal.Norm.Gamma)
	wr.tensor(p.Temporal.Norm.Beta)
	wr.lstm(&p.Temporal.LSTM[0])
	wr.lstm(&p.Temporal.LSTM[1])
	wr.dense(&p.Temporal.Mask)
	wr.dense(&p.Temporal.Decoder)

	if wr.err != nil {
		return fmt.Errorf("tensors: %w", wr.err)
	}

	return nil
}

// tensorReader reads consecutive tensors, latching the first error so the
// call sites stay linear.
type tensorReader struct {
	r   io.Reader
	err error
}

func (t *tensorReader) tensor(n int) []float64 {
	if t.err != nil {
		return nil
	}

	buf := make([]float64, n)
	if err := binary.Read(t.r, binary.LittleEndian, buf); err != nil {
		t.err = err
		return nil
	}

	return buf
}

func (t *tensorReader) lstm(in, units int) LSTM {
	return LSTM{
		In:    in,
		Units: units,
		Wx:    t.tensor(in * 4 * units),
		Wh:    t.tensor(units * 4 * units),
		B:     t.tensor(4 * units),
	}
}

func (t *tensorReader) dense(in, out int, withBias bool) Dense {
	d := Dense{In: in, Out: out, W: t.tensor(in * out)}
	if withBias {
		d.B = t.tensor(out)
	}

	return d
}

type tensorWriter struct {
	w   io.Writer
	err error
}

func (t *tensorWriter) tensor(data []float64) {
	if t.err != nil {
		return
	}

	t.err = binary.Write(t.w, binary.LittleEndian, data)
}

func (t *tensorWriter) lstm(l *LSTM) {
	t.tensor(l.Wx)
	t.tensor(l.Wh)
	t.tensor(l.B)
}

func (t *tensorWriter) dense(d *Dense) {
	t.tensor(d.W)
	if d.B != nil {
		t.tensor(d.B)
	}
}
