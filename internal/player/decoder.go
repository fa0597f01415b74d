package player

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// ErrUnsupportedFormat is returned for locators whose extension has no
// decoder.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// audioDecoder produces interleaved s16le PCM. Length and offsets are in
// bytes of that output.
type audioDecoder interface {
	io.ReadSeeker
	Length() int64
	SampleRate() int
	ChannelCount() int
}

// newDecoder picks a decoder from the media extension.
func newDecoder(src *Source) (audioDecoder, error) {
	switch ext := strings.ToLower(src.Ext); ext {
	case ".mp3":
		trim, err := src.mp3Trim()
		if err != nil {
			return nil, fmt.Errorf("reading MP3 header: %w", err)
		}
		return newMP3Decoder(src, trim)
	case ".wav":
		return newWAVDecoder(src)
	case ".flac":
		return newFLACDecoder(src)
	case ".ogg":
		return newOGGDecoder(src)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// seekTarget resolves a Seek call against the current position and length
// and clamps the result to [0, length].
func seekTarget(offset int64, whence int, pos, length int64) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = pos + offset
	case io.SeekEnd:
		next = length + offset
	default:
		return pos, fmt.Errorf("invalid seek whence: %d", whence)
	}
	if next < 0 {
		next = 0
	}
	if next > length {
		next = length
	}
	return next, nil
}

func clampPCM16(sample int) int16 {
	if sample > 32767 {
		return 32767
	}
	if sample < -32768 {
		return -32768
	}
	return int16(sample)
}

// pcmQueue holds converted samples that did not fit the caller's buffer.
type pcmQueue struct {
	buf []byte
	pos int64
}

func (q *pcmQueue) drain(p []byte) (int, bool) {
	if len(q.buf) == 0 {
		return 0, false
	}
	n := copy(p, q.buf)
	q.buf = q.buf[n:]
	q.pos += int64(n)
	return n, true
}

func (q *pcmQueue) deliver(p, raw []byte) int {
	n := copy(p, raw)
	if n < len(raw) {
		q.buf = append(q.buf[:0], raw[n:]...)
	}
	q.pos += int64(n)
	return n
}

func (q *pcmQueue) reset(pos int64) {
	q.buf = nil
	q.pos = pos
}

// mp3

type mp3Decoder struct {
	dec    *mp3.Decoder
	start  int64 // encoder delay skipped at the front, in bytes
	length int64
	pos    int64
}

func newMP3Decoder(src io.ReadSeeker, trim encoderTrim) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(src)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}

	// go-mp3 always decodes to stereo s16le.
	d := &mp3Decoder{dec: dec}
	d.start, d.length = trim.span(dec.Length(), 4)
	if d.start > 0 {
		if _, err := dec.Seek(d.start, io.SeekStart); err != nil {
			return nil, fmt.Errorf("skipping MP3 encoder delay: %w", err)
		}
	}
	return d, nil
}

func (d *mp3Decoder) Read(p []byte) (int, error) {
	remaining := d.length - d.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := d.dec.Read(p)
	d.pos += int64(n)
	return n, err
}

func (d *mp3Decoder) Seek(offset int64, whence int) (int64, error) {
	next, err := seekTarget(offset, whence, d.pos, d.length)
	if err != nil {
		return d.pos, err
	}
	if _, err := d.dec.Seek(d.start+next, io.SeekStart); err != nil {
		return d.pos, err
	}
	d.pos = next
	return next, nil
}

func (d *mp3Decoder) Length() int64     { return d.length }
func (d *mp3Decoder) SampleRate() int   { return d.dec.SampleRate() }
func (d *mp3Decoder) ChannelCount() int { return 2 }

// wav

type wavDecoder struct {
	src          io.ReadSeeker
	q            pcmQueue
	length       int64
	pcmStart     int64
	sampleRate   int
	channels     int
	bitDepth     int
	srcFrameSize int64
}

func newWAVDecoder(src io.ReadSeeker) (*wavDecoder, error) {
	dec := wav.NewDecoder(src)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	if channels < 1 || bitDepth%8 != 0 || bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported WAV layout: %d channels, %d bits", channels, bitDepth)
	}
	srcFrameSize := int64(channels * bitDepth / 8)

	pcmStart, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("locating WAV PCM data: %w", err)
	}

	frames := dec.PCMLen() / srcFrameSize
	return &wavDecoder{
		src:          src,
		length:       frames * int64(channels) * 2,
		pcmStart:     pcmStart,
		sampleRate:   int(dec.SampleRate),
		channels:     channels,
		bitDepth:     bitDepth,
		srcFrameSize: srcFrameSize,
	}, nil
}

func (d *wavDecoder) Read(p []byte) (int, error) {
	if n, ok := d.q.drain(p); ok {
		return n, nil
	}
	if d.q.pos >= d.length {
		return 0, io.EOF
	}

	width := d.bitDepth / 8
	samples := len(p) / 2
	if samples == 0 {
		samples = 1
	}
	if remaining := int((d.length - d.q.pos) / 2); samples > remaining {
		samples = remaining
	}
	in := make([]byte, samples*width)
	n, err := io.ReadFull(d.src, in)
	got := n / width
	if got == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, err
	}

	raw := make([]byte, got*2)
	for i := 0; i < got; i++ {
		off := i * width
		var s int
		switch d.bitDepth {
		case 8:
			s = (int(in[off]) - 128) << 8
		case 16:
			s = int(int16(binary.LittleEndian.Uint16(in[off:])))
		case 24:
			v := int32(in[off]) | int32(in[off+1])<<8 | int32(in[off+2])<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}
			s = int(v >> 8)
		case 32:
			s = int(int32(binary.LittleEndian.Uint32(in[off:])) >> 16)
		}
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(clampPCM16(s)))
	}
	return d.q.deliver(p, raw), nil
}

func (d *wavDecoder) Seek(offset int64, whence int) (int64, error) {
	next, err := seekTarget(offset, whence, d.q.pos, d.length)
	if err != nil {
		return d.q.pos, err
	}
	frame := next / int64(d.channels*2)
	if _, err := d.src.Seek(d.pcmStart+frame*d.srcFrameSize, io.SeekStart); err != nil {
		return d.q.pos, err
	}
	d.q.reset(next)
	return next, nil
}

func (d *wavDecoder) Length() int64     { return d.length }
func (d *wavDecoder) SampleRate() int   { return d.sampleRate }
func (d *wavDecoder) ChannelCount() int { return d.channels }

// flac

type flacDecoder struct {
	stream     *flac.Stream
	q          pcmQueue
	length     int64
	sampleRate int
	channels   int
	bps        int
}

func newFLACDecoder(src io.ReadSeeker) (*flacDecoder, error) {
	stream, err := flac.NewSeek(src)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	info := stream.Info
	channels := int(info.NChannels)
	return &flacDecoder{
		stream:     stream,
		length:     int64(info.NSamples) * int64(channels) * 2,
		sampleRate: int(info.SampleRate),
		channels:   channels,
		bps:        int(info.BitsPerSample),
	}, nil
}

func (d *flacDecoder) Read(p []byte) (int, error) {
	if n, ok := d.q.drain(p); ok {
		return n, nil
	}
	frame, err := d.stream.ParseNext()
	if err != nil {
		return 0, err
	}

	count := int(frame.Subframes[0].NSamples)
	raw := make([]byte, count*d.channels*2)
	for i := 0; i < count; i++ {
		for ch := 0; ch < d.channels; ch++ {
			s := int(frame.Subframes[ch].Samples[i])
			if d.bps > 16 {
				s >>= d.bps - 16
			} else if d.bps < 16 {
				s <<= 16 - d.bps
			}
			binary.LittleEndian.PutUint16(raw[(i*d.channels+ch)*2:], uint16(clampPCM16(s)))
		}
	}
	return d.q.deliver(p, raw), nil
}

func (d *flacDecoder) Seek(offset int64, whence int) (int64, error) {
	next, err := seekTarget(offset, whence, d.q.pos, d.length)
	if err != nil {
		return d.q.pos, err
	}
	if _, err := d.stream.Seek(uint64(next / int64(d.channels*2))); err != nil {
		return d.q.pos, err
	}
	d.q.reset(next)
	return next, nil
}

func (d *flacDecoder) Length() int64     { return d.length }
func (d *flacDecoder) SampleRate() int   { return d.sampleRate }
func (d *flacDecoder) ChannelCount() int { return d.channels }

// ogg vorbis

type oggDecoder struct {
	reader     *oggvorbis.Reader
	q          pcmQueue
	length     int64
	sampleRate int
	channels   int
}

func newOGGDecoder(src io.ReadSeeker) (*oggDecoder, error) {
	reader, err := oggvorbis.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	channels := reader.Channels()
	return &oggDecoder{
		reader:     reader,
		length:     reader.Length() * int64(channels) * 2,
		sampleRate: reader.SampleRate(),
		channels:   channels,
	}, nil
}

func (d *oggDecoder) Read(p []byte) (int, error) {
	if n, ok := d.q.drain(p); ok {
		return n, nil
	}
	samples := make([]float32, max(len(p)/2, 1))
	n, err := d.reader.Read(samples)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	raw := make([]byte, n*2)
	for i, s := range samples[:n] {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(clampPCM16(int(s*32767))))
	}
	return d.q.deliver(p, raw), nil
}

func (d *oggDecoder) Seek(offset int64, whence int) (int64, error) {
	next, err := seekTarget(offset, whence, d.q.pos, d.length)
	if err != nil {
		return d.q.pos, err
	}
	if err := d.reader.SetPosition(next / int64(d.channels*2)); err != nil {
		return d.q.pos, err
	}
	d.q.reset(next)
	return next, nil
}

func (d *oggDecoder) Length() int64     { return d.length }
func (d *oggDecoder) SampleRate() int   { return d.sampleRate }
func (d *oggDecoder) ChannelCount() int { return d.channels }
