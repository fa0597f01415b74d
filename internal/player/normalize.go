package player

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	outputSampleRate = 44100
	outputChannels   = 2
	outputFrameSize  = outputChannels * 2
)

// normalizedDecoder presents any mono or stereo decoder as 44.1 kHz stereo
// s16le, resampling with linear interpolation. Voicemail is commonly 8 kHz
// mono, so most messages take the slow path.
type normalizedDecoder struct {
	src         audioDecoder
	passthrough bool
	br          *bufio.Reader

	srcRate      int64
	srcChannels  int
	srcFrameSize int
	srcTotal     int64
	outTotal     int64
	outPos       int64

	// win holds source frames base and base+1; hasNext is false when
	// base is the final source frame.
	win     [2][outputChannels]int16
	base    int64
	start   int64
	hasNext bool

	q     pcmQueue
	frame []byte
}

func newNormalizedDecoder(src audioDecoder) (audioDecoder, error) {
	rate := src.SampleRate()
	if rate <= 0 {
		return nil, fmt.Errorf("unsupported sample rate: %d", rate)
	}
	channels := src.ChannelCount()
	if channels < 1 || channels > outputChannels {
		return nil, fmt.Errorf("unsupported channel count: %d", channels)
	}
	if rate == outputSampleRate && channels == outputChannels {
		return &normalizedDecoder{src: src, passthrough: true}, nil
	}

	frameSize := channels * 2
	srcTotal := src.Length() / int64(frameSize)
	outTotal := srcTotal * outputSampleRate / int64(rate)
	if srcTotal > 0 && outTotal == 0 {
		outTotal = 1
	}
	return &normalizedDecoder{
		src:          src,
		br:           bufio.NewReaderSize(src, 8192),
		srcRate:      int64(rate),
		srcChannels:  channels,
		srcFrameSize: frameSize,
		srcTotal:     srcTotal,
		outTotal:     outTotal,
		base:         -1,
		frame:        make([]byte, frameSize),
	}, nil
}

func (d *normalizedDecoder) Length() int64 {
	if d.passthrough {
		return d.src.Length()
	}
	return d.outTotal * outputFrameSize
}

func (d *normalizedDecoder) SampleRate() int   { return outputSampleRate }
func (d *normalizedDecoder) ChannelCount() int { return outputChannels }

func (d *normalizedDecoder) Read(p []byte) (int, error) {
	if d.passthrough {
		return d.src.Read(p)
	}
	if n, ok := d.q.drain(p); ok {
		return n, nil
	}
	if d.outPos >= d.outTotal {
		return 0, io.EOF
	}

	want := (len(p) + outputFrameSize - 1) / outputFrameSize
	if want == 0 {
		want = 1
	}
	if rest := d.outTotal - d.outPos; int64(want) > rest {
		want = int(rest)
	}

	raw := make([]byte, 0, want*outputFrameSize)
	var err error
	for i := 0; i < want; i++ {
		num := d.outPos * d.srcRate
		idx := num / outputSampleRate
		if err = d.advance(idx); err != nil {
			break
		}
		frac := num % outputSampleRate
		next := d.win[0]
		if d.hasNext {
			next = d.win[1]
		}
		for ch := 0; ch < outputChannels; ch++ {
			raw = binary.LittleEndian.AppendUint16(raw, uint16(lerp(d.win[0][ch], next[ch], frac)))
		}
		d.outPos++
	}
	if len(raw) == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	return d.q.deliver(p, raw), nil
}

// advance moves the window so that win[0] is source frame idx.
func (d *normalizedDecoder) advance(idx int64) error {
	if d.base < 0 {
		if err := d.readFrame(&d.win[0]); err != nil {
			return err
		}
		d.base = d.start
		d.hasNext = false
	}
	for d.base < idx {
		if !d.hasNext {
			if err := d.readFrame(&d.win[1]); err != nil {
				return err
			}
		}
		d.win[0] = d.win[1]
		d.base++
		d.hasNext = false
	}
	if !d.hasNext && d.base+1 < d.srcTotal {
		if err := d.readFrame(&d.win[1]); err == nil {
			d.hasNext = true
		}
	}
	return nil
}

func (d *normalizedDecoder) readFrame(dst *[outputChannels]int16) error {
	if _, err := io.ReadFull(d.br, d.frame); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return err
	}
	left := int16(binary.LittleEndian.Uint16(d.frame))
	right := left
	if d.srcChannels == 2 {
		right = int16(binary.LittleEndian.Uint16(d.frame[2:]))
	}
	dst[0], dst[1] = left, right
	return nil
}

func (d *normalizedDecoder) Seek(offset int64, whence int) (int64, error) {
	if d.passthrough {
		return d.src.Seek(offset, whence)
	}
	next, err := seekTarget(offset, whence, d.outPos*outputFrameSize, d.Length())
	if err != nil {
		return d.outPos * outputFrameSize, err
	}
	next -= next % outputFrameSize

	outFrame := next / outputFrameSize
	srcFrame := outFrame * d.srcRate / outputSampleRate
	if _, err := d.src.Seek(srcFrame*int64(d.srcFrameSize), io.SeekStart); err != nil {
		return d.outPos * outputFrameSize, err
	}
	d.br.Reset(d.src)
	d.outPos = outFrame
	d.start = srcFrame
	d.base = -1
	d.hasNext = false
	d.q.reset(next)
	return next, nil
}

func lerp(a, b int16, frac int64) int16 {
	if frac == 0 || a == b {
		return a
	}
	diff := int64(b) - int64(a)
	return int16(int64(a) + (diff*frac+outputSampleRate/2)/outputSampleRate)
}
