package mailbox

import (
	"os"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/olivier-w/mailbox/internal/player"
	"github.com/olivier-w/mailbox/internal/registry"
	"github.com/olivier-w/mailbox/internal/router"
	"github.com/olivier-w/mailbox/internal/sorter"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type fakeEngine struct {
	token   uint64
	loads   []string
	plays   int
	pauses  int
	stops   int
	seeks   []time.Duration
	volumes []float64
	speeds  []player.SpeedMode
	onStop  func()
}

func (e *fakeEngine) Load(locator string) uint64 {
	e.token++
	e.loads = append(e.loads, locator)
	return e.token
}

func (e *fakeEngine) Play()  { e.plays++ }
func (e *fakeEngine) Pause() { e.pauses++ }

func (e *fakeEngine) Stop() {
	e.stops++
	if e.onStop != nil {
		e.onStop()
	}
}

func (e *fakeEngine) Seek(pos time.Duration) { e.seeks = append(e.seeks, pos) }
func (e *fakeEngine) SetVolume(v float64)    { e.volumes = append(e.volumes, v) }

func (e *fakeEngine) SetSpeed(s player.SpeedMode) { e.speeds = append(e.speeds, s) }

func (e *fakeEngine) volume() float64 {
	if len(e.volumes) == 0 {
		return -1
	}
	return e.volumes[len(e.volumes)-1]
}

type harness struct {
	c      *Controller
	engine *fakeEngine
	reg    *registry.Registry
	loc    *router.MemoryLocation
	table  *sorter.Table
	starts []PlayStart
}

func newHarness(t *testing.T, fragment string) *harness {
	t.Helper()
	h := &harness{engine: &fakeEngine{}, reg: registry.New(), loc: router.NewMemoryLocation(fragment)}
	h.reg.Build([]registry.Message{
		{ID: "1", Memo: "dentist", Locator: "/vm/1.mp3"},
		{ID: "2", Memo: "mom", Locator: "/vm/2.mp3"},
		{ID: "3", Memo: "pharmacy", Locator: "/vm/3.mp3"},
	})
	h.table = sorter.New(
		[]sorter.Column{{Name: "memo", Type: sorter.Text}, {Name: "length", Type: sorter.Duration}},
		[]*sorter.Row{
			{ID: "1", Cells: []*sorter.Cell{{Text: "dentist"}, {Text: "0:30"}}},
			{ID: "2", Cells: []*sorter.Cell{{Text: "mom"}, {Text: "1:10"}}},
			{ID: "3", Cells: []*sorter.Cell{{Text: "pharmacy"}, {Text: "0:05"}}},
		},
		-1,
	)
	h.c = New(Options{
		Engine:        h.engine,
		Registry:      h.reg,
		Router:        router.New(h.loc, h.reg),
		Sorter:        h.table,
		SiteTitle:     "voicemail",
		Volume:        1,
		OnPlayStarted: func(s PlayStart) { h.starts = append(h.starts, s) },
	})
	h.c.Init()
	t.Cleanup(h.c.Dispose)
	return h
}

func (h *harness) engineEvent(kind player.EventKind) {
	h.c.Dispatch(EngineEvent{player.Event{Kind: kind, Token: h.c.Token()}})
}

func selectedCount(reg *registry.Registry) int {
	n := 0
	for _, id := range reg.IDs() {
		if m, _ := reg.Get(id); m.Selected {
			n++
		}
	}
	return n
}

func TestInitSelectsFirstMessage(t *testing.T) {
	h := newHarness(t, "")

	if got := h.c.PlayerState().SelectedID; got != "1" {
		t.Fatalf("expected message 1 selected, got %q", got)
	}
	if n := selectedCount(h.reg); n != 1 {
		t.Fatalf("expected exactly one selected record, got %d", n)
	}
	ctl := h.c.Controls()
	if ctl.PrevEnabled || !ctl.NextEnabled {
		t.Fatalf("expected prev disabled and next enabled, got %+v", ctl)
	}
	if h.c.State() != Loading {
		t.Fatalf("expected loading, got %v", h.c.State())
	}
	if !slices.Equal(h.engine.loads, []string{"/vm/1.mp3"}) {
		t.Fatalf("unexpected loads %v", h.engine.loads)
	}
	if h.engine.plays != 0 {
		t.Fatal("initial selection must not autoplay")
	}
	if got := h.loc.Fragment(); got != "1" {
		t.Fatalf("expected fragment 1, got %q", got)
	}
	if got := h.c.Title(); got != "dentist | voicemail" {
		t.Fatalf("unexpected title %q", got)
	}
}

func TestInitUsesFragment(t *testing.T) {
	h := newHarness(t, "#2")
	if got := h.c.PlayerState().SelectedID; got != "2" {
		t.Fatalf("expected message 2 selected, got %q", got)
	}
	ctl := h.c.Controls()
	if !ctl.PrevEnabled || !ctl.NextEnabled {
		t.Fatalf("expected both neighbours enabled, got %+v", ctl)
	}
}

func TestInitIgnoresUnknownFragment(t *testing.T) {
	h := newHarness(t, "#nope")
	if got := h.c.PlayerState().SelectedID; got != "1" {
		t.Fatalf("expected fallback to message 1, got %q", got)
	}
}

func TestNextTwiceReachesLastMessage(t *testing.T) {
	h := newHarness(t, "")

	h.c.Dispatch(NextClicked{})
	h.c.Dispatch(NextClicked{})

	if got := h.c.PlayerState().SelectedID; got != "3" {
		t.Fatalf("expected message 3 selected, got %q", got)
	}
	ctl := h.c.Controls()
	if ctl.NextEnabled || !ctl.PrevEnabled {
		t.Fatalf("expected next disabled and prev enabled, got %+v", ctl)
	}
	if h.engine.plays != 2 {
		t.Fatalf("expected autoplay on each step, got %d plays", h.engine.plays)
	}

	h.c.Dispatch(NextClicked{})
	if len(h.engine.loads) != 3 {
		t.Fatalf("next at the last message must be a no-op, loads %v", h.engine.loads)
	}
	if n := selectedCount(h.reg); n != 1 {
		t.Fatalf("expected exactly one selected record, got %d", n)
	}
}

func TestPlayPauseFollowsEngine(t *testing.T) {
	h := newHarness(t, "")
	h.engineEvent(player.EventDuration)
	if h.c.State() != Stopped {
		t.Fatalf("expected load without play to settle to stopped, got %v", h.c.State())
	}

	h.c.Dispatch(PlayClicked{})
	if h.engine.plays != 1 {
		t.Fatalf("expected engine play, got %d", h.engine.plays)
	}
	h.engineEvent(player.EventPlaying)
	if ctl := h.c.Controls(); ctl.State != Playing || !ctl.PlayActive || !ctl.StopEnabled {
		t.Fatalf("unexpected controls while playing %+v", ctl)
	}

	h.c.Dispatch(PlayClicked{})
	if h.engine.pauses != 1 {
		t.Fatalf("expected engine pause, got %d", h.engine.pauses)
	}
	h.engineEvent(player.EventPaused)
	if h.c.State() != Paused {
		t.Fatalf("expected paused, got %v", h.c.State())
	}
}

func TestEndedPausesAndRearmsPlayStart(t *testing.T) {
	h := newHarness(t, "")
	h.c.Dispatch(PlayClicked{})
	h.engineEvent(player.EventPlaying)
	h.engineEvent(player.EventEnded)

	if h.c.State() != Paused {
		t.Fatalf("expected paused after ended, got %v", h.c.State())
	}
	if h.c.PlayerState().HasFiredPlayStart {
		t.Fatal("expected play-start flag reset after ended")
	}
}

func TestErrorSurvivesPause(t *testing.T) {
	h := newHarness(t, "")
	h.c.Dispatch(PlayClicked{})
	h.engineEvent(player.EventPlaying)
	h.c.Dispatch(EngineEvent{player.Event{Kind: player.EventPosition, Token: h.c.Token(), Position: 12 * time.Second}})

	h.engineEvent(player.EventError)
	ctl := h.c.Controls()
	if ctl.State != Error {
		t.Fatalf("expected error, got %v", ctl.State)
	}
	if ctl.Position != 0 {
		t.Fatalf("expected position reset, got %v", ctl.Position)
	}
	if ctl.SeekEnabled || ctl.StopEnabled || ctl.PrevEnabled || ctl.NextEnabled || !ctl.PlayEnabled {
		t.Fatalf("expected only play enabled among transport controls, got %+v", ctl)
	}
	h.c.Dispatch(NextClicked{})
	if got := h.c.PlayerState().SelectedID; got != "1" || len(h.engine.loads) != 1 {
		t.Fatalf("next must be ignored in error state, selected %q loads %v", got, h.engine.loads)
	}

	h.engineEvent(player.EventPaused)
	if h.c.State() != Error {
		t.Fatalf("pause must not clear the error, got %v", h.c.State())
	}
	h.c.Dispatch(SeekRequested{Position: time.Second})
	if len(h.engine.seeks) != 0 {
		t.Fatal("seek must be ignored in error state")
	}
}

func TestPlayInErrorReloads(t *testing.T) {
	h := newHarness(t, "")
	h.engineEvent(player.EventError)
	stale := h.c.Token()

	h.c.Dispatch(PlayClicked{})
	if len(h.engine.loads) != 2 || h.engine.loads[1] != "/vm/1.mp3" {
		t.Fatalf("expected reload of message 1, got %v", h.engine.loads)
	}
	if h.engine.plays != 1 {
		t.Fatalf("expected play after reload, got %d", h.engine.plays)
	}
	if h.c.State() != Loading {
		t.Fatalf("expected loading, got %v", h.c.State())
	}

	h.c.Dispatch(EngineEvent{player.Event{Kind: player.EventError, Token: stale}})
	if h.c.State() != Loading {
		t.Fatalf("stale error must be ignored, got %v", h.c.State())
	}

	h.engineEvent(player.EventPlaying)
	if h.c.State() != Playing {
		t.Fatalf("expected playing after successful reload, got %v", h.c.State())
	}
}

func TestStopClearsErrorAndResets(t *testing.T) {
	h := newHarness(t, "")
	h.engineEvent(player.EventError)
	h.c.Dispatch(StopClicked{})

	ctl := h.c.Controls()
	if ctl.State != Stopped || ctl.Position != 0 || ctl.StopEnabled {
		t.Fatalf("unexpected controls after stop %+v", ctl)
	}
	if h.engine.stops != 1 {
		t.Fatalf("expected engine stop, got %d", h.engine.stops)
	}
}

func TestPlayAfterStopRetriesFailedLoad(t *testing.T) {
	h := newHarness(t, "")
	h.engineEvent(player.EventError)
	h.c.Dispatch(StopClicked{})
	if ctl := h.c.Controls(); ctl.State != Stopped || !ctl.NextEnabled {
		t.Fatalf("expected stopped with navigation restored, got %+v", ctl)
	}

	h.c.Dispatch(PlayClicked{})
	if len(h.engine.loads) != 2 || h.engine.loads[1] != "/vm/1.mp3" {
		t.Fatalf("expected reload of message 1, got %v", h.engine.loads)
	}
	if h.c.State() != Loading {
		t.Fatalf("expected loading, got %v", h.c.State())
	}

	h.engineEvent(player.EventDuration)
	h.engineEvent(player.EventPlaying)
	h.c.Dispatch(PlayClicked{})
	if h.engine.pauses != 1 || len(h.engine.loads) != 2 {
		t.Fatalf("expected pause without reload once loaded, pauses %d loads %v", h.engine.pauses, h.engine.loads)
	}
}

func TestStaleEngineEventsIgnored(t *testing.T) {
	h := newHarness(t, "")
	first := h.c.Token()
	h.c.Dispatch(NextClicked{})

	h.c.Dispatch(EngineEvent{player.Event{Kind: player.EventPlaying, Token: first}})
	if h.c.State() != Loading {
		t.Fatalf("stale playing event changed state to %v", h.c.State())
	}
	if len(h.starts) != 0 {
		t.Fatal("stale playing event fired the play-start hook")
	}
	h.c.Dispatch(EngineEvent{player.Event{Kind: player.EventDuration, Token: first, Duration: time.Minute}})
	if h.c.Controls().Duration != 0 {
		t.Fatal("stale duration was displayed")
	}
}

func TestPlayStartFiresOncePerLoad(t *testing.T) {
	h := newHarness(t, "")
	h.c.Dispatch(PlayClicked{})
	h.engineEvent(player.EventPlaying)
	h.engineEvent(player.EventPaused)
	h.c.Dispatch(SeekRequested{Position: time.Second})
	h.engineEvent(player.EventPlaying)

	if len(h.starts) != 1 || h.starts[0] != (PlayStart{ID: "1", Memo: "dentist"}) {
		t.Fatalf("expected one play start for message 1, got %v", h.starts)
	}

	h.c.Dispatch(NextClicked{})
	h.engineEvent(player.EventPlaying)
	if len(h.starts) != 2 || h.starts[1].ID != "2" {
		t.Fatalf("expected a play start for the new load, got %v", h.starts)
	}
}

func TestExternalFragmentChangeSelectsWithoutPlaying(t *testing.T) {
	h := newHarness(t, "")
	h.c.Dispatch(PlayClicked{})
	h.engineEvent(player.EventPlaying)

	h.loc.SetFragment("2")
	if got := h.c.PlayerState().SelectedID; got != "2" {
		t.Fatalf("expected message 2 selected, got %q", got)
	}
	if h.engine.stops != 1 {
		t.Fatalf("expected current playback stopped, got %d stops", h.engine.stops)
	}
	if h.engine.plays != 1 {
		t.Fatal("navigation must not autoplay")
	}
	if h.c.State() != Loading {
		t.Fatalf("expected loading, got %v", h.c.State())
	}

	loads := len(h.engine.loads)
	h.c.Dispatch(FragmentChanged{Fragment: "#2"})
	h.c.Dispatch(FragmentChanged{Fragment: "#99"})
	h.c.Dispatch(FragmentChanged{Fragment: ""})
	if len(h.engine.loads) != loads {
		t.Fatalf("expected no transition, loads %v", h.engine.loads)
	}
}

func TestSelectionDoesNotLoopThroughFragment(t *testing.T) {
	h := newHarness(t, "")
	h.c.Dispatch(SelectMessage{ID: "3", Play: true})
	if len(h.engine.loads) != 2 {
		t.Fatalf("expected one load per selection, got %v", h.engine.loads)
	}
	if got := h.loc.Fragment(); got != "3" {
		t.Fatalf("expected fragment 3, got %q", got)
	}
}

func TestReorderUpdatesNavigationOnly(t *testing.T) {
	h := newHarness(t, "")
	h.c.Dispatch(PlayClicked{})
	h.engineEvent(player.EventPlaying)

	// length ascending: 3, 1, 2
	h.table.Click(1)
	ctl := h.c.Controls()
	if !ctl.PrevEnabled || !ctl.NextEnabled {
		t.Fatalf("expected message 1 to have both neighbours, got %+v", ctl)
	}
	if h.c.State() != Playing || h.c.PlayerState().SelectedID != "1" {
		t.Fatal("reorder disturbed playback or selection")
	}
	if len(h.engine.loads) != 1 {
		t.Fatalf("reorder must not reload, got %v", h.engine.loads)
	}

	h.table.Click(1)
	ctl = h.c.Controls()
	if !ctl.PrevEnabled || !ctl.NextEnabled {
		t.Fatalf("expected reversed order to keep both neighbours, got %+v", ctl)
	}

	h.c.Dispatch(NextClicked{})
	if got := h.c.PlayerState().SelectedID; got != "3" {
		t.Fatalf("expected next in reversed order to be 3, got %q", got)
	}
	if n := selectedCount(h.reg); n != 1 {
		t.Fatalf("expected exactly one selected record, got %d", n)
	}
}

func TestMuteRestoresVolume(t *testing.T) {
	h := newHarness(t, "")
	h.c.Dispatch(VolumeChanged{Volume: 0.6})

	h.c.Dispatch(MuteClicked{})
	if h.engine.volume() != 0 || !h.c.Controls().Muted {
		t.Fatalf("expected muted engine, volume %v", h.engine.volume())
	}
	h.c.Dispatch(MuteClicked{})
	if got := h.engine.volume(); got != 0.6 {
		t.Fatalf("expected volume 0.6 restored, got %v", got)
	}
	if got := h.c.PlayerState().Volume; got != 0.6 {
		t.Fatalf("expected state volume 0.6, got %v", got)
	}
}

func TestVolumeChangeWhileMutedAppliesOnUnmute(t *testing.T) {
	h := newHarness(t, "")
	h.c.Dispatch(MuteClicked{})
	h.c.Dispatch(VolumeChanged{Volume: 0.3})
	if got := h.engine.volume(); got != 0 {
		t.Fatalf("volume change applied while muted: %v", got)
	}
	if got := h.c.Controls().Volume; got != 0.3 {
		t.Fatalf("expected slider at 0.3, got %v", got)
	}
	h.c.Dispatch(MuteClicked{})
	if got := h.engine.volume(); got != 0.3 {
		t.Fatalf("expected 0.3 after unmute, got %v", got)
	}
}

func TestVolumeIsClamped(t *testing.T) {
	h := newHarness(t, "")
	for _, v := range []float64{-0.5, 1.7, 0.25} {
		h.c.Dispatch(VolumeChanged{Volume: v})
		got := h.c.PlayerState().Volume
		if got < 0 || got > 1 {
			t.Fatalf("VolumeChanged(%v) left volume %v", v, got)
		}
	}
	if got := h.c.PlayerState().LastVolume; got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}
}

func TestSpeedCyclesAndSurvivesSelection(t *testing.T) {
	h := newHarness(t, "")
	h.c.Dispatch(SpeedClicked{})
	h.c.Dispatch(SpeedClicked{})
	if got := h.c.Controls().Speed; got != player.Speed2x {
		t.Fatalf("expected 2x, got %v", got)
	}
	if !slices.Equal(h.engine.speeds, []player.SpeedMode{player.Speed1_5x, player.Speed2x}) {
		t.Fatalf("unexpected engine speeds %v", h.engine.speeds)
	}

	h.c.Dispatch(NextClicked{})
	if got := h.c.Controls().Speed; got != player.Speed2x {
		t.Fatalf("expected speed kept across selection, got %v", got)
	}
}

func TestSeekClampsToDuration(t *testing.T) {
	h := newHarness(t, "")
	h.c.Dispatch(EngineEvent{player.Event{Kind: player.EventDuration, Token: h.c.Token(), Duration: 30 * time.Second}})
	h.c.Dispatch(SeekRequested{Position: time.Minute})
	if !slices.Equal(h.engine.seeks, []time.Duration{30 * time.Second}) {
		t.Fatalf("unexpected seeks %v", h.engine.seeks)
	}
	if got := h.c.Controls().Position; got != 30*time.Second {
		t.Fatalf("expected position 30s, got %v", got)
	}
}

func TestReentrantEngineCallbackIsQueued(t *testing.T) {
	h := newHarness(t, "")
	h.c.Dispatch(PlayClicked{})
	h.engineEvent(player.EventPlaying)

	calls := 0
	h.engine.onStop = func() {
		calls++
		h.engineEvent(player.EventPaused)
	}
	h.c.Dispatch(StopClicked{})

	if calls != 1 || h.engine.stops != 1 {
		t.Fatalf("expected a single stop, got %d", h.engine.stops)
	}
	if h.c.State() != Stopped {
		t.Fatalf("queued pause changed stopped state to %v", h.c.State())
	}
}

func TestEmptyMailboxStaysDisabled(t *testing.T) {
	engine := &fakeEngine{}
	c := New(Options{Engine: engine, Registry: registry.New()})
	c.Init()
	c.Dispatch(PlayClicked{})
	c.Dispatch(NextClicked{})

	ctl := c.Controls()
	if ctl.PlayEnabled || ctl.SeekEnabled || ctl.NextEnabled || ctl.MuteEnabled {
		t.Fatalf("expected all controls disabled, got %+v", ctl)
	}
	if len(engine.loads) != 0 || engine.plays != 0 {
		t.Fatal("empty mailbox touched the engine")
	}
	if c.State() != Stopped {
		t.Fatalf("expected stopped, got %v", c.State())
	}
}

func TestDisposeDetaches(t *testing.T) {
	h := newHarness(t, "")
	h.c.Dispose()
	if h.engine.stops != 1 {
		t.Fatalf("expected engine stopped on dispose, got %d", h.engine.stops)
	}

	h.table.Click(0)
	h.loc.SetFragment("3")
	h.c.Dispatch(NextClicked{})
	if got := h.c.PlayerState().SelectedID; got != "1" {
		t.Fatalf("disposed controller changed selection to %q", got)
	}
	if len(h.engine.loads) != 1 {
		t.Fatalf("disposed controller loaded %v", h.engine.loads)
	}
}

func TestIndependentInstances(t *testing.T) {
	a := newHarness(t, "")
	b := newHarness(t, "#3")
	a.c.Dispatch(NextClicked{})
	if got := b.c.PlayerState().SelectedID; got != "3" {
		t.Fatalf("instance b affected by a: %q", got)
	}
	if got := a.c.PlayerState().SelectedID; got != "2" {
		t.Fatalf("expected a on 2, got %q", got)
	}
}
