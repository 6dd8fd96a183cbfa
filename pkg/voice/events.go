package voice

import (
	"log/slog"
	"time"
)

// TrackEventKind identifies an untimed, state-driven track event.
type TrackEventKind int

const (
	// TrackEnd fires once when a track transitions into a terminal mode.
	TrackEnd TrackEventKind = iota

	// TrackLoop fires each time a track restarts for a loop iteration.
	TrackLoop
)

// CoreEvent is a control-plane event surfaced to the host.
type CoreEvent struct {
	// Speaking is set for speaking-state updates parsed from the voice
	// gateway.
	Speaking *SpeakingUpdate

	// ClientDisconnect is set when a user leaves the voice channel.
	ClientDisconnect *ClientDisconnect
}

// SpeakingUpdate reports a remote user's speaking state change.
type SpeakingUpdate struct {
	UserID   string
	SSRC     uint32
	Speaking bool
}

// ClientDisconnect reports a user leaving the session.
type ClientDisconnect struct {
	UserID string
}

// EventContext is passed to event handlers when they fire.
type EventContext struct {
	// Track is the state snapshot of the track the event fired on; nil
	// for global core events.
	Track *TrackState

	// Handle is the fired track's handle; nil for global core events.
	Handle *TrackHandle

	// Core is set for core events.
	Core *CoreEvent
}

// EventHandler is invoked on the event task's goroutine and must not block.
type EventHandler func(EventContext)

type eventKind int

const (
	evtUntimed eventKind = iota
	evtDelayed
	evtPeriodic
	evtCore
)

// EventData is one event subscription: an untimed track event, a timed
// (delayed or periodic) event, or a core event listener.
type EventData struct {
	kind     eventKind
	track    TrackEventKind
	delay    time.Duration
	interval time.Duration
	fireAt   time.Duration
	handler  EventHandler
}

// OnTrackEvent subscribes handler to an untimed track event.
func OnTrackEvent(kind TrackEventKind, h EventHandler) EventData {
	return EventData{kind: evtUntimed, track: kind, handler: h}
}

// Delayed fires handler once, d after the track position it was added at.
func Delayed(d time.Duration, h EventHandler) EventData {
	return EventData{kind: evtDelayed, delay: d, handler: h}
}

// Periodic fires handler every interval of track playback.
func Periodic(interval time.Duration, h EventHandler) EventData {
	return EventData{kind: evtPeriodic, interval: interval, handler: h}
}

// OnCoreEvent subscribes handler to control-plane events. Only meaningful as
// a global event.
func OnCoreEvent(h EventHandler) EventData {
	return EventData{kind: evtCore, handler: h}
}

// EventStore holds the subscriptions of one track (or the global set).
type EventStore struct {
	untimed map[TrackEventKind][]EventData
	timed   []EventData
	core    []EventData
}

func newEventStore() *EventStore {
	return &EventStore{untimed: make(map[TrackEventKind][]EventData)}
}

// add registers ev, arming timed events relative to the given position.
func (s *EventStore) add(ev EventData, at time.Duration) {
	switch ev.kind {
	case evtUntimed:
		s.untimed[ev.track] = append(s.untimed[ev.track], ev)
	case evtDelayed:
		ev.fireAt = at + ev.delay
		s.timed = append(s.timed, ev)
	case evtPeriodic:
		ev.fireAt = at + ev.interval
		s.timed = append(s.timed, ev)
	case evtCore:
		s.core = append(s.core, ev)
	}
}

// fireUntimed invokes all handlers for kind.
func (s *EventStore) fireUntimed(kind TrackEventKind, ctx EventContext) {
	for _, ev := range s.untimed[kind] {
		ev.handler(ctx)
	}
}

// fireTimed invokes due timed events, re-arming periodic ones and dropping
// one-shot delays.
func (s *EventStore) fireTimed(at time.Duration, ctx EventContext) {
	kept := s.timed[:0]
	for _, ev := range s.timed {
		if ev.fireAt > at {
			kept = append(kept, ev)
			continue
		}
		ev.handler(ctx)
		if ev.kind == evtPeriodic {
			ev.fireAt += ev.interval
			kept = append(kept, ev)
		}
	}
	s.timed = kept
}

// ── Messages into the event task ───────────────────────────────────────────

// EventMessage is a message consumed by the event dispatch task.
type EventMessage interface{ isEventMessage() }

// AddTrack registers a new track slot with its subscriptions and state.
type AddTrack struct {
	Store  *EventStore
	State  TrackState
	Handle *TrackHandle
}

// AddTrackEvent subscribes an event on an existing track slot.
type AddTrackEvent struct {
	Index int
	Event EventData
}

// AddGlobalEvent subscribes a session-wide event.
type AddGlobalEvent struct{ Event EventData }

// ChangeState applies a state delta to a track slot and fires any untimed
// events it implies.
type ChangeState struct {
	Index  int
	Change StateChange
}

// RemoveTrack drops a track slot.
type RemoveTrack struct{ Index int }

// RemoveAllTracks drops every track slot.
type RemoveAllTracks struct{}

// Tick advances playing tracks by one frame and fires due timed events.
type Tick struct{}

// FireCoreEvent dispatches a control-plane event to core listeners.
type FireCoreEvent struct{ Event CoreEvent }

// Poison stops the event task.
type Poison struct{}

func (AddTrack) isEventMessage()        {}
func (AddTrackEvent) isEventMessage()   {}
func (AddGlobalEvent) isEventMessage()  {}
func (ChangeState) isEventMessage()     {}
func (RemoveTrack) isEventMessage()     {}
func (RemoveAllTracks) isEventMessage() {}
func (Tick) isEventMessage()            {}
func (FireCoreEvent) isEventMessage()   {}
func (Poison) isEventMessage()          {}

// StateChange is one delta within a ChangeState message.
type StateChange interface{ isStateChange() }

// ModeChange reports a play-mode transition.
type ModeChange struct{ Mode PlayMode }

// VolumeChange reports a volume adjustment.
type VolumeChange struct{ Volume float32 }

// PositionChange reports a seek or loop restart.
type PositionChange struct{ Position time.Duration }

// LoopsChange reports a loop-budget change. UserSet distinguishes handle
// commands from budget consumption on restart.
type LoopsChange struct {
	Loops   LoopState
	UserSet bool
}

func (ModeChange) isStateChange()     {}
func (VolumeChange) isStateChange()   {}
func (PositionChange) isStateChange() {}
func (LoopsChange) isStateChange()    {}

// ── Event task ─────────────────────────────────────────────────────────────

type trackSlot struct {
	store  *EventStore
	state  TrackState
	handle *TrackHandle
}

// runEvents is the event dispatch task. It owns the per-track subscription
// stores and state mirrors, and fires handlers in response to mixer
// messages. It exits on Poison or channel close.
func runEvents(rx <-chan EventMessage) {
	global := newEventStore()
	var tracks []trackSlot

	ctxFor := func(i int) EventContext {
		return EventContext{Track: &tracks[i].state, Handle: tracks[i].handle}
	}

	for msg := range rx {
		switch m := msg.(type) {
		case AddTrack:
			store := m.Store
			if store == nil {
				store = newEventStore()
			}
			tracks = append(tracks, trackSlot{store: store, state: m.State, handle: m.Handle})

		case AddTrackEvent:
			if m.Index >= len(tracks) {
				slog.Warn("voice: event subscription for unknown track", "index", m.Index)
				continue
			}
			s := &tracks[m.Index]
			s.store.add(m.Event, s.state.Position)

		case AddGlobalEvent:
			global.add(m.Event, 0)

		case ChangeState:
			if m.Index >= len(tracks) {
				slog.Warn("voice: state change for unknown track", "index", m.Index)
				continue
			}
			s := &tracks[m.Index]
			switch c := m.Change.(type) {
			case ModeChange:
				old := s.state.Playing
				s.state.Playing = c.Mode
				if old != c.Mode && c.Mode.IsDone() {
					s.store.fireUntimed(TrackEnd, ctxFor(m.Index))
					global.fireUntimed(TrackEnd, ctxFor(m.Index))
				}
			case VolumeChange:
				s.state.Volume = c.Volume
			case PositionChange:
				s.state.Position = c.Position
			case LoopsChange:
				s.state.Loops = c.Loops
				if !c.UserSet {
					s.store.fireUntimed(TrackLoop, ctxFor(m.Index))
					global.fireUntimed(TrackLoop, ctxFor(m.Index))
				}
			}

		case RemoveTrack:
			if m.Index >= len(tracks) {
				slog.Warn("voice: removal of unknown track", "index", m.Index)
				continue
			}
			tracks = append(tracks[:m.Index], tracks[m.Index+1:]...)

		case RemoveAllTracks:
			tracks = tracks[:0]

		case Tick:
			for i := range tracks {
				if tracks[i].state.Playing != ModePlay {
					continue
				}
				tracks[i].state.Position += FrameTime
				tracks[i].store.fireTimed(tracks[i].state.Position, ctxFor(i))
			}

		case FireCoreEvent:
			ev := m.Event
			for _, sub := range global.core {
				sub.handler(EventContext{Core: &ev})
			}

		case Poison:
			return
		}
	}
}
