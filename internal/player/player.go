// Package player adapts oto audio output and the format decoders into the
// playback engine the mailbox drives. All notifications are delivered
// asynchronously on Events and are tagged with the load they belong to.
package player

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog/log"
)

const (
	bytesPerSec     = outputSampleRate * outputFrameSize
	monitorInterval = 200 * time.Millisecond
	eventBuffer     = 256
)

// countingReader wraps the decoder and tracks bytes handed to the output.
type countingReader struct {
	reader io.Reader
	pos    int64
	mu     sync.Mutex
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.reader.Read(p)
	cr.mu.Lock()
	cr.pos += int64(n)
	cr.mu.Unlock()
	return n, err
}

func (cr *countingReader) Pos() int64 {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.pos
}

func (cr *countingReader) SetPos(pos int64) {
	cr.mu.Lock()
	cr.pos = pos
	cr.mu.Unlock()
}

// sink is the subset of *oto.Player the engine uses.
type sink interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(v float64)
	Err() error
}

// output creates sinks reading 44.1 kHz stereo s16le PCM.
type output interface {
	newSink(r io.Reader) (sink, error)
}

var (
	globalOtoCtx *oto.Context
	otoOnce      sync.Once
	otoInitErr   error
)

func initOto() (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   outputSampleRate,
			ChannelCount: outputChannels,
			Format:       oto.FormatSignedInt16LE,
		}
		var ready chan struct{}
		globalOtoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-ready
		}
	})
	return globalOtoCtx, otoInitErr
}

type otoOutput struct{}

func (otoOutput) newSink(r io.Reader) (sink, error) {
	ctx, err := initOto()
	if err != nil {
		return nil, err
	}
	return ctx.NewPlayer(r), nil
}

// track is the media of one successful load.
type track struct {
	token    uint64
	src      *Source
	decoder  audioDecoder
	counter  *countingReader
	speed    *speedReader
	sink     sink
	duration time.Duration
	playing  bool
	ended    bool
	session  uint64
}

func (t *track) position() time.Duration {
	return time.Duration(float64(t.counter.Pos()) / bytesPerSec * float64(time.Second))
}

// Option configures an Engine.
type Option func(*Engine)

// WithOpener replaces the locator opener.
func WithOpener(open Opener) Option {
	return func(e *Engine) { e.open = open }
}

func withOutput(out output) Option {
	return func(e *Engine) { e.out = out }
}

// Engine plays one message at a time. Every Load supersedes the previous
// one; events from a superseded load are never emitted.
type Engine struct {
	mu       sync.Mutex
	out      output
	open     Opener
	events   chan Event
	token    uint64
	track    *track
	cancel   context.CancelFunc
	volume   float64
	speed    SpeedMode
	wantPlay bool
	closed   bool
}

// NewEngine returns an engine writing to the system audio device.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		out:    otoOutput{},
		open:   OpenLocator,
		events: make(chan Event, eventBuffer),
		volume: 1,
		cancel: func() {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events returns the notification stream. It is never closed.
func (e *Engine) Events() <-chan Event {
	return e.events
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		log.Warn().Stringer("kind", ev.Kind).Uint64("token", ev.Token).Msg("Engine event dropped")
	}
}

// Load starts loading locator and returns its token. The previous media is
// released immediately.
func (e *Engine) Load(locator string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.token++
	token := e.token
	e.releaseLocked()
	e.cancel()
	if e.closed {
		return token
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wantPlay = false
	e.emit(Event{Kind: EventLoading, Token: token})
	log.Debug().Uint64("token", token).Str("locator", locator).Msg("Loading")

	go e.load(ctx, token, locator)
	return token
}

func (e *Engine) load(ctx context.Context, token uint64, locator string) {
	tr, err := e.prepare(ctx, token, locator)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || token != e.token {
		if tr != nil {
			tr.release()
		}
		return
	}
	if err != nil {
		log.Debug().Err(err).Uint64("token", token).Str("locator", locator).Msg("Load failed")
		e.emit(Event{Kind: EventError, Token: token, Err: err})
		return
	}

	e.track = tr
	e.emit(Event{Kind: EventDuration, Token: token, Duration: tr.duration})
	if e.wantPlay {
		e.startLocked(tr)
	}
}

func (e *Engine) prepare(ctx context.Context, token uint64, locator string) (*track, error) {
	src, err := e.open(ctx, locator)
	if err != nil {
		return nil, err
	}
	dec, err := newDecoder(src)
	if err != nil {
		src.Close()
		return nil, err
	}
	norm, err := newNormalizedDecoder(dec)
	if err != nil {
		src.Close()
		return nil, err
	}

	counter := &countingReader{reader: norm}
	speed := newSpeedReader(counter, outputFrameSize)
	s, err := e.out.newSink(speed)
	if err != nil {
		src.Close()
		return nil, err
	}
	e.mu.Lock()
	s.SetVolume(e.volume)
	speed.setSpeed(e.speed)
	e.mu.Unlock()

	return &track{
		token:    token,
		src:      src,
		decoder:  norm,
		counter:  counter,
		speed:    speed,
		sink:     s,
		duration: time.Duration(float64(norm.Length()) / bytesPerSec * float64(time.Second)),
	}, nil
}

func (e *Engine) releaseLocked() {
	if e.track == nil {
		return
	}
	e.track.playing = false
	e.track.session++
	e.track.release()
	e.track = nil
}

// release silences the track's sink and closes its media.
func (tr *track) release() {
	tr.sink.Pause()
	tr.src.Close()
}

// Play starts or resumes playback. While a load is in flight the request is
// remembered and honoured when the load completes.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.token == 0 {
		return
	}
	e.wantPlay = true
	if e.track != nil {
		e.startLocked(e.track)
	}
}

func (e *Engine) startLocked(tr *track) {
	if tr.playing {
		return
	}
	if tr.ended {
		e.seekLocked(tr, 0)
		tr.ended = false
	}
	tr.sink.Play()
	tr.playing = true
	tr.session++
	e.emit(Event{Kind: EventPlaying, Token: tr.token, Position: tr.position()})
	go e.monitor(tr, tr.session)
}

// Pause pauses playback. Pausing media that is not playing does nothing.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseLocked()
}

func (e *Engine) pauseLocked() {
	e.wantPlay = false
	tr := e.track
	if tr == nil || !tr.playing {
		return
	}
	tr.sink.Pause()
	tr.playing = false
	tr.session++
	e.emit(Event{Kind: EventPaused, Token: tr.token, Position: tr.position()})
}

// Stop pauses and rewinds to the beginning.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseLocked()
	if e.track != nil {
		e.seekLocked(e.track, 0)
		e.track.ended = false
	}
}

// Seek moves playback to pos, clamped to the media.
func (e *Engine) Seek(pos time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.track == nil {
		return
	}
	e.seekLocked(e.track, pos)
	e.track.ended = false
}

func (e *Engine) seekLocked(tr *track, pos time.Duration) {
	offset := clampSeekByteOffset(pos, tr.decoder.Length())
	if _, err := tr.decoder.Seek(offset, io.SeekStart); err != nil {
		log.Debug().Err(err).Dur("position", pos).Msg("Seek failed")
		return
	}
	tr.counter.SetPos(offset)
	tr.speed.clearBuf()

	// A fresh sink drops audio already buffered by the old one.
	next, err := e.out.newSink(tr.speed)
	if err != nil {
		log.Debug().Err(err).Msg("Recreating sink after seek failed")
		return
	}
	tr.sink.Pause()
	next.SetVolume(e.volume)
	tr.sink = next
	if tr.playing {
		tr.sink.Play()
	}
	e.emit(Event{Kind: EventPosition, Token: tr.token, Position: tr.position()})
}

func clampSeekByteOffset(pos time.Duration, length int64) int64 {
	offset := int64(pos.Seconds() * bytesPerSec)
	if offset < 0 {
		offset = 0
	}
	if offset > length {
		offset = length
	}
	return offset - offset%outputFrameSize
}

// SetVolume sets the output volume, clamped to [0, 1].
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = clampVolume(v)
	if e.track != nil {
		e.track.sink.SetVolume(e.volume)
	}
}

// Volume returns the output volume.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func clampVolume(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SetSpeed changes the playback speed of the loaded media and of every
// later load.
func (e *Engine) SetSpeed(s SpeedMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = s
	if e.track != nil {
		e.track.speed.setSpeed(s)
	}
}

// Speed returns the playback speed.
func (e *Engine) Speed() SpeedMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// Position returns the playback position of the loaded media.
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.track == nil {
		return 0
	}
	return e.track.position()
}

// Duration returns the length of the loaded media, or 0 while loading.
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.track == nil {
		return 0
	}
	return e.track.duration
}

// Close releases the loaded media. The engine ignores every later call.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.cancel()
	e.releaseLocked()
}

// monitor reports progress for one play session and detects the end of
// the media.
func (e *Engine) monitor(tr *track, session uint64) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()
	for range ticker.C {
		e.mu.Lock()
		if e.track != tr || tr.session != session || !tr.playing {
			e.mu.Unlock()
			return
		}
		if err := tr.sink.Err(); err != nil {
			tr.playing = false
			tr.session++
			e.emit(Event{Kind: EventError, Token: tr.token, Err: err})
			e.mu.Unlock()
			return
		}
		if tr.counter.Pos() >= tr.decoder.Length() && !tr.sink.IsPlaying() {
			tr.playing = false
			tr.ended = true
			tr.session++
			e.emit(Event{Kind: EventEnded, Token: tr.token, Position: tr.duration})
			e.mu.Unlock()
			return
		}
		e.emit(Event{Kind: EventPosition, Token: tr.token, Position: tr.position()})
		e.mu.Unlock()
	}
}
