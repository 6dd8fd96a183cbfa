package voice

import (
	"fmt"
	"log/slog"
	"time"
)

// PlayMode is the playback state of a track.
type PlayMode int

const (
	// ModePlay: the track contributes samples to the mix.
	ModePlay PlayMode = iota

	// ModePause: the track holds its position and stays silent.
	ModePause

	// ModeEnd: the track has finished or been stopped; observers are
	// about to be notified.
	ModeEnd

	// ModeDone: observers have been notified; the track slot is removed
	// in the same cycle.
	ModeDone
)

// IsDone reports whether the mode is terminal.
func (m PlayMode) IsDone() bool { return m == ModeEnd || m == ModeDone }

func (m PlayMode) String() string {
	switch m {
	case ModePlay:
		return "play"
	case ModePause:
		return "pause"
	case ModeEnd:
		return "end"
	case ModeDone:
		return "done"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// LoopState is the remaining loop budget of a track: [LoopOff] plays once,
// a positive count replays that many more times, [LoopForever] never stops.
type LoopState int

const (
	LoopOff     LoopState = 0
	LoopForever LoopState = -1
)

// TrackState is a snapshot of a track's externally visible state.
type TrackState struct {
	Playing  PlayMode
	Volume   float32
	Position time.Duration
	Loops    LoopState
}

// Track couples an [Input] with playback state, a per-track volume, a loop
// policy, event subscriptions, and the command inbox its [TrackHandle] feeds.
// Tracks live on the mixer goroutine; all external interaction goes through
// the handle.
type Track struct {
	input  *Input
	volume float32

	playing  PlayMode
	loops    LoopState
	position time.Duration

	// ephemeral suppresses per-track lifecycle events to the host.
	ephemeral bool

	events   *EventStore
	commands chan trackCommand
	handle   *TrackHandle
}

// TrackOption configures a track at creation.
type TrackOption func(*Track)

// WithVolume sets the initial track volume. 1.0 is unity gain.
func WithVolume(v float32) TrackOption {
	return func(t *Track) { t.volume = v }
}

// WithPaused creates the track paused instead of playing.
func WithPaused() TrackOption {
	return func(t *Track) { t.playing = ModePause }
}

// WithLoops sets the initial loop budget.
func WithLoops(l LoopState) TrackOption {
	return func(t *Track) { t.loops = l }
}

// NewTrack wraps input in a track and returns it with its handle. The track
// is handed to a driver via [Driver.Play] or the mixer's AddTrack message;
// the handle stays with the caller.
func NewTrack(input *Input, opts ...TrackOption) (*Track, *TrackHandle) {
	t := &Track{
		input:    input,
		volume:   1.0,
		playing:  ModePlay,
		events:   newEventStore(),
		commands: make(chan trackCommand, 16),
	}
	for _, o := range opts {
		o(t)
	}
	t.handle = &TrackHandle{
		cmds: t.commands,
		done: make(chan struct{}),
		meta: input.Metadata,
	}
	return t, t.handle
}

// Handle returns the user-facing handle.
func (t *Track) Handle() *TrackHandle { return t.handle }

// State returns a snapshot of the track's visible state.
func (t *Track) State() TrackState {
	return TrackState{
		Playing:  t.playing,
		Volume:   t.volume,
		Position: t.position,
		Loops:    t.loops,
	}
}

// setMode transitions the play mode and notifies the events task. The handle
// is marked done only at ModeDone: a stopped track still accepts commands as
// queued no-ops until the mixer removes it.
func (t *Track) setMode(m PlayMode, ic *Interconnect, index int) {
	if t.playing == m {
		return
	}
	t.playing = m
	t.emitState(ic, index, ModeChange{Mode: m})

	if m == ModeDone {
		t.handle.markDone()
	}
}

// emitState forwards a state change to the events task unless the track is
// ephemeral.
func (t *Track) emitState(ic *Interconnect, index int, change StateChange) {
	if t.ephemeral {
		return
	}
	ic.sendEvent(ChangeState{Index: index, Change: change})
}

// doLoop consumes one loop iteration from the budget, reporting whether the
// track should restart.
func (t *Track) doLoop() bool {
	switch {
	case t.loops == LoopForever:
		return true
	case t.loops > 0:
		t.loops--
		return true
	}
	return false
}

// restart seeks the input back to zero for a loop iteration and emits the
// position and loop state changes.
func (t *Track) restart(ic *Interconnect, index int) bool {
	if _, err := t.input.Seek(0); err != nil {
		slog.Warn("voice: loop restart seek failed", "error", err)
		return false
	}
	t.position = 0
	t.emitState(ic, index, PositionChange{Position: 0})
	t.emitState(ic, index, LoopsChange{Loops: t.loops, UserSet: false})
	return true
}

// processCommands drains the command inbox and applies each command in FIFO
// order. Called by the mixer once per cycle.
func (t *Track) processCommands(ic *Interconnect, index int) {
	for {
		select {
		case cmd := <-t.commands:
			cmd.apply(t, ic, index)
		default:
			return
		}
	}
}

// ── Track commands ─────────────────────────────────────────────────────────

type trackCommand interface {
	apply(t *Track, ic *Interconnect, index int)
}

type playCmd struct{}

func (playCmd) apply(t *Track, ic *Interconnect, index int) {
	if !t.playing.IsDone() {
		t.setMode(ModePlay, ic, index)
	}
}

type pauseCmd struct{}

func (pauseCmd) apply(t *Track, ic *Interconnect, index int) {
	if !t.playing.IsDone() {
		t.setMode(ModePause, ic, index)
	}
}

type stopCmd struct{}

func (stopCmd) apply(t *Track, ic *Interconnect, index int) {
	t.setMode(ModeEnd, ic, index)
}

type volumeCmd struct{ volume float32 }

func (c volumeCmd) apply(t *Track, ic *Interconnect, index int) {
	t.volume = c.volume
	t.emitState(ic, index, VolumeChange{Volume: c.volume})
}

// SeekResult is the reply to a seek command: the position actually reached,
// or the error that prevented the seek.
type SeekResult struct {
	Position time.Duration
	Err      error
}

type seekCmd struct {
	to    time.Duration
	reply chan<- SeekResult
}

func (c seekCmd) apply(t *Track, ic *Interconnect, index int) {
	pos, err := t.input.Seek(c.to)
	if err == nil {
		t.position = pos
		t.emitState(ic, index, PositionChange{Position: pos})
	}
	if c.reply != nil {
		c.reply <- SeekResult{Position: pos, Err: err}
	}
}

type loopCmd struct{ loops LoopState }

func (c loopCmd) apply(t *Track, ic *Interconnect, index int) {
	t.loops = c.loops
	t.emitState(ic, index, LoopsChange{Loops: c.loops, UserSet: true})
}

type addEventCmd struct{ event EventData }

func (c addEventCmd) apply(t *Track, ic *Interconnect, index int) {
	ic.sendEvent(AddTrackEvent{Index: index, Event: c.event})
}

type ephemeralCmd struct{ ephemeral bool }

func (c ephemeralCmd) apply(t *Track, _ *Interconnect, _ int) {
	t.ephemeral = c.ephemeral
}
