package player

import (
	"io"
	"sync"
)

// SpeedMode represents the playback speed setting.
type SpeedMode int

const (
	Speed1x SpeedMode = iota
	Speed1_5x
	Speed2x
	SpeedHalf
)

// Next cycles to the next speed mode: 1x → 1.5x → 2x → 0.5x → 1x.
func (s SpeedMode) Next() SpeedMode {
	switch s {
	case Speed1x:
		return Speed1_5x
	case Speed1_5x:
		return Speed2x
	case Speed2x:
		return SpeedHalf
	default:
		return Speed1x
	}
}

// Ratio returns how many source frames are consumed per output frame.
func (s SpeedMode) Ratio() float64 {
	switch s {
	case Speed1_5x:
		return 1.5
	case Speed2x:
		return 2
	case SpeedHalf:
		return 0.5
	default:
		return 1
	}
}

// Label returns a display label for the speed mode, empty at 1x.
func (s SpeedMode) Label() string {
	switch s {
	case Speed1_5x:
		return "[1.5x]"
	case Speed2x:
		return "[2x]"
	case SpeedHalf:
		return "[0.5x]"
	default:
		return ""
	}
}

// speedReader sits between countingReader and the sink, dropping or
// repeating whole frames to change playback speed. Pitch changes with it.
type speedReader struct {
	source    io.Reader
	frameSize int
	step      float64 // output frames per source frame
	acc       float64
	buf       []byte // frames produced but not yet read
	tmpBuf    []byte // reusable read buffer (grow-only)
	mu        sync.Mutex
}

func newSpeedReader(source io.Reader, frameSize int) *speedReader {
	return &speedReader{
		source:    source,
		frameSize: frameSize,
		step:      1,
	}
}

func (sr *speedReader) Read(p []byte) (int, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if sr.step == 1 && len(sr.buf) == 0 {
		return sr.source.Read(p)
	}

	fs := sr.frameSize
	for len(sr.buf) < len(p) {
		srcSize := max(int(float64(len(p)-len(sr.buf))/sr.step)/fs, 1) * fs
		if cap(sr.tmpBuf) < srcSize {
			sr.tmpBuf = make([]byte, srcSize)
		}
		tmp := sr.tmpBuf[:srcSize]
		n, err := io.ReadFull(sr.source, tmp)

		for i := 0; i < n/fs; i++ {
			sr.acc += sr.step
			for sr.acc >= 1 {
				sr.buf = append(sr.buf, tmp[i*fs:(i+1)*fs]...)
				sr.acc--
			}
		}
		if err != nil {
			if len(sr.buf) > 0 {
				break
			}
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			return 0, err
		}
	}

	n := copy(p, sr.buf)
	sr.buf = append(sr.buf[:0], sr.buf[n:]...)
	return n, nil
}

func (sr *speedReader) setSpeed(s SpeedMode) {
	sr.mu.Lock()
	sr.step = 1 / s.Ratio()
	sr.acc = 0
	sr.buf = sr.buf[:0]
	sr.mu.Unlock()
}

func (sr *speedReader) clearBuf() {
	sr.mu.Lock()
	sr.acc = 0
	sr.buf = sr.buf[:0]
	sr.mu.Unlock()
}
