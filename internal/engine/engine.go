package engine

import (
	"errors"
	"math"
	"slices"
	"strings"
	"time"
)

var ErrUnsupportedKey = errors.New("unsupported key")
var ErrNothingToErase = errors.New("nothing to erase")
var ErrPassageEnd = errors.New("end of passage")

const KeyBackspace Key = "Backspace"

// Key is a browser-style key name: "a", " ", "Backspace", "Shift", ...
type Key string

type KeyEvent struct {
	Key Key
	At  time.Time
}

// Letter is one slot of the keystroke map. Typed is empty while the slot is pending.
type Letter struct {
	Typed    string `json:"typed"`
	Expected string `json:"expected"`
}

type State struct {
	Passage   []rune
	Cursor    int
	Letters   []Letter // dense from 0, len(Letters) <= len(Passage)
	Started   bool
	StartedAt time.Time

	Unsupported KeySet // nil means DefaultUnsupportedKeys
}

type Metrics struct {
	WPM      int `json:"wpm"`
	CPM      int `json:"cpm"`
	Accuracy int `json:"accuracy"`
}

type EventType string

const (
	EvtStarted   EventType = "Started"
	EvtTyped     EventType = "Typed"
	EvtErased    EventType = "Erased"
	EvtCompleted EventType = "Completed"
)

type Event struct {
	Type  EventType
	Index int
	Key   Key
}

/*
	printable  -> EvtStarted (first key only) -> EvtTyped  -> EvtCompleted (if text matches)
	Backspace  -> EvtStarted (first key only) -> EvtErased
	Backspace at 0, unsupported keys and keys past the end change nothing.
*/

// Apply never mutates s: the returned state owns a fresh copy of the letters.
func Apply(s State, ev KeyEvent) ([]Event, State, error) {
	if !s.keys().Supports(ev.Key) {
		return nil, s, ErrUnsupportedKey
	}

	var events []Event
	newState := s

	switch ev.Key {
	case KeyBackspace:
		if s.Cursor == 0 {
			return nil, s, ErrNothingToErase
		}
		events = markStarted(&newState, ev, events)

		newState.Cursor--
		newState.Letters = slices.Clone(s.Letters)
		newState.Letters[newState.Cursor] = Letter{Expected: string(s.Passage[newState.Cursor])}
		events = append(events, Event{Type: EvtErased, Index: newState.Cursor, Key: ev.Key})
		return events, newState, nil

	default:
		if s.Cursor >= len(s.Passage) {
			return nil, s, ErrPassageEnd
		}
		events = markStarted(&newState, ev, events)

		i := s.Cursor
		letter := Letter{Typed: string(ev.Key), Expected: string(s.Passage[i])}
		if i < len(s.Letters) {
			newState.Letters = slices.Clone(s.Letters)
			newState.Letters[i] = letter
		} else {
			newState.Letters = append(slices.Clone(s.Letters), letter)
		}
		newState.Cursor++
		events = append(events, Event{Type: EvtTyped, Index: i, Key: ev.Key})

		if IsComplete(newState) && !IsComplete(s) {
			events = append(events, Event{Type: EvtCompleted})
		}
		return events, newState, nil
	}
}

func (s State) keys() KeySet {
	if s.Unsupported == nil {
		return DefaultUnsupportedKeys
	}
	return s.Unsupported
}

func markStarted(s *State, ev KeyEvent, events []Event) []Event {
	if s.Started {
		return events
	}
	s.Started = true
	s.StartedAt = ev.At
	return append(events, Event{Type: EvtStarted, Key: ev.Key})
}

// ComputeMetrics derives everything from the full keystroke map on every call.
func ComputeMetrics(s State, now time.Time) Metrics {
	if !s.Started {
		return Metrics{}
	}
	elapsedMinutes := float64(now.Sub(s.StartedAt).Milliseconds()) / 60000
	if elapsedMinutes <= 0 {
		return Metrics{}
	}

	correct, total := CorrectCount(s), len(s.Letters)
	if total == 0 {
		return Metrics{}
	}

	return Metrics{
		WPM:      int(math.Floor(float64(correct) / 5 / elapsedMinutes)),
		CPM:      int(math.Floor(float64(correct) / elapsedMinutes)),
		Accuracy: int(math.Round(100 * float64(correct) / float64(total))),
	}
}

// IsComplete compares full text, so reaching the last index with typos is not enough.
func IsComplete(s State) bool {
	return strings.TrimSpace(TypedText(s)) == strings.TrimSpace(string(s.Passage))
}

func TypedText(s State) string {
	var b strings.Builder
	for _, l := range s.Letters {
		b.WriteString(l.Typed)
	}
	return b.String()
}

type Class string

const (
	ClassUpcoming  Class = "upcoming"
	ClassCurrent   Class = "current"
	ClassCorrect   Class = "correct"
	ClassIncorrect Class = "incorrect"
)

// Classify returns one class per passage letter for the rendering layer.
func Classify(s State) []Class {
	classes := make([]Class, len(s.Passage))
	for i := range s.Passage {
		switch {
		case i == s.Cursor:
			classes[i] = ClassCurrent
		case i > s.Cursor:
			classes[i] = ClassUpcoming
		case i < len(s.Letters) && s.Letters[i].Typed == s.Letters[i].Expected:
			classes[i] = ClassCorrect
		default:
			classes[i] = ClassIncorrect
		}
	}
	return classes
}
