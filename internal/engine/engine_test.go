package engine

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func keys(ks ...string) []KeyEvent {
	out := make([]KeyEvent, len(ks))
	for i, k := range ks {
		out[i] = KeyEvent{Key: Key(k), At: t0.Add(time.Duration(i) * time.Second)}
	}
	return out
}

func TestScenario_BackspaceRetypeCompletes(t *testing.T) {
	s := NewState("cat dog", nil)
	events, s := ApplyAll(s, keys("c", "a", "t", "Backspace", "t", " ", "d", "o", "g"))

	require.Equal(t, 7, s.Cursor)
	require.Len(t, s.Letters, 7)
	for i, l := range s.Letters {
		assert.Equal(t, l.Expected, l.Typed, "letter %d", i)
	}
	assert.True(t, IsComplete(s))
	assert.True(t, ContainsEvent(events, EvtCompleted))
	assert.Equal(t, t0, s.StartedAt)
}

func TestApply_RejectedKeysLeaveStateAlone(t *testing.T) {
	cases := []struct {
		name    string
		setup   func() State
		key     Key
		wantErr error
	}{
		{
			name:    "backspace at cursor zero",
			setup:   func() State { return NewState("abc", nil) },
			key:     KeyBackspace,
			wantErr: ErrNothingToErase,
		},
		{
			name:    "modifier key",
			setup:   func() State { return NewState("abc", nil) },
			key:     "Shift",
			wantErr: ErrUnsupportedKey,
		},
		{
			name:    "empty key",
			setup:   func() State { return NewState("abc", nil) },
			key:     "",
			wantErr: ErrUnsupportedKey,
		},
		{
			name: "past the end of the passage",
			setup: func() State {
				_, s := ApplyAll(NewState("ab", nil), keys("a", "b"))
				return s
			},
			key:     "c",
			wantErr: ErrPassageEnd,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := tc.setup()
			events, after, err := Apply(before, KeyEvent{Key: tc.key, At: t0})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
			assert.Nil(t, events)
			assert.Equal(t, before, after)
		})
	}
}

func TestApply_BackspaceAtZeroIsIdempotent(t *testing.T) {
	s := NewState("abc", nil)
	for i := 0; i < 3; i++ {
		_, next, _ := Apply(s, KeyEvent{Key: KeyBackspace, At: t0})
		require.Equal(t, s, next)
		s = next
	}
	assert.False(t, s.Started, "a no-op backspace must not start the clock")
}

func TestApply_FirstAcceptedKeyStartsClock(t *testing.T) {
	s := NewState("abc", nil)
	_, s, _ = Apply(s, KeyEvent{Key: "Shift", At: t0})
	require.False(t, s.Started)

	events, s, err := Apply(s, KeyEvent{Key: "x", At: t0.Add(time.Second)})
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtStarted))
	assert.Equal(t, t0.Add(time.Second), s.StartedAt)

	events, s, _ = Apply(s, KeyEvent{Key: "b", At: t0.Add(2 * time.Second)})
	assert.False(t, ContainsEvent(events, EvtStarted))
	assert.Equal(t, t0.Add(time.Second), s.StartedAt)
}

func TestApply_BackspaceLeavesPendingLetter(t *testing.T) {
	_, s := ApplyAll(NewState("abc", nil), keys("a", "b", "Backspace"))

	require.Equal(t, 1, s.Cursor)
	require.Len(t, s.Letters, 2)
	assert.Equal(t, Letter{Typed: "", Expected: "b"}, s.Letters[1])
	assert.Equal(t, []Class{ClassCorrect, ClassCurrent, ClassUpcoming}, Classify(s))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	_, s := ApplyAll(NewState("abc", nil), keys("a", "x"))
	snapshot := append([]Letter(nil), s.Letters...)

	_, _, err := Apply(s, KeyEvent{Key: KeyBackspace, At: t0})
	require.NoError(t, err)
	_, _, err = Apply(s, KeyEvent{Key: "c", At: t0})
	require.NoError(t, err)

	assert.Equal(t, snapshot, s.Letters)
	assert.Equal(t, 2, s.Cursor)
}

func TestApply_CursorTracksForwardMinusEffectiveBackspaces(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	passage := "the quick brown fox jumps over the lazy dog"
	pool := []Key{"a", "e", " ", "o", KeyBackspace, KeyBackspace, "Shift", "ArrowLeft"}

	for run := 0; run < 200; run++ {
		s := NewState(passage, nil)
		want := 0
		for i := 0; i < 60; i++ {
			k := pool[rng.Intn(len(pool))]
			switch {
			case k == KeyBackspace:
				if want > 0 {
					want--
				}
			case DefaultUnsupportedKeys[k]:
			default:
				if want < len(s.Passage) {
					want++
				}
			}
			_, s, _ = Apply(s, KeyEvent{Key: k, At: t0})
			require.Equal(t, want, s.Cursor)
			require.LessOrEqual(t, len(s.Letters), len(s.Passage))
		}
	}
}

func TestComputeMetrics(t *testing.T) {
	cases := []struct {
		name string
		keys []KeyEvent
		now  time.Time
		want Metrics
	}{
		{
			name: "nothing typed",
			now:  t0.Add(time.Minute),
			want: Metrics{},
		},
		{
			name: "zero elapsed time",
			keys: []KeyEvent{{Key: "a", At: t0}},
			now:  t0,
			want: Metrics{},
		},
		{
			name: "ten correct letters in one minute",
			keys: keys("a", "b", "c", "d", "e", "f", "g", "h", "i", "j"),
			now:  t0.Add(time.Minute),
			want: Metrics{WPM: 2, CPM: 10, Accuracy: 100},
		},
		{
			name: "one typo in ten letters over thirty seconds",
			keys: keys("a", "b", "c", "d", "e", "f", "g", "h", "i", "x"),
			now:  t0.Add(30 * time.Second),
			want: Metrics{WPM: 3, CPM: 18, Accuracy: 90},
		},
		{
			name: "pending letters count as incorrect",
			keys: keys("a", "b", "c", "Backspace"),
			now:  t0.Add(time.Minute),
			want: Metrics{WPM: 0, CPM: 2, Accuracy: 67},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, s := ApplyAll(NewState("abcdefghijklmnop", nil), tc.keys)
			assert.Equal(t, tc.want, ComputeMetrics(s, tc.now))
		})
	}
}

func TestIsComplete(t *testing.T) {
	cases := []struct {
		name    string
		passage string
		keys    []KeyEvent
		want    bool
	}{
		{name: "exact match", passage: "cat dog", keys: keys("c", "a", "t", " ", "d", "o", "g"), want: true},
		{name: "trailing space before the end", passage: "cat dog", keys: keys("c", "a", "t", " "), want: false},
		{name: "end reached with a typo", passage: "cat", keys: keys("c", "a", "x"), want: false},
		{name: "passage trailing whitespace ignored", passage: "cat ", keys: keys("c", "a", "t"), want: true},
		{name: "nothing typed", passage: "cat", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, s := ApplyAll(NewState(tc.passage, nil), tc.keys)
			assert.Equal(t, tc.want, IsComplete(s))
		})
	}
}

func TestCustomKeySet(t *testing.T) {
	s := NewState("ab", NewKeySet("a", KeyBackspace))

	_, s, err := Apply(s, KeyEvent{Key: "a", At: t0})
	require.ErrorIs(t, err, ErrUnsupportedKey)

	_, s, err = Apply(s, KeyEvent{Key: "Shift", At: t0})
	require.NoError(t, err, "Shift is typeable when the set does not list it")

	_, s, err = Apply(s, KeyEvent{Key: KeyBackspace, At: t0})
	require.NoError(t, err, "Backspace can never be ignored")
	assert.Equal(t, 0, s.Cursor)
}

func TestHandBuiltKeySetKeepsBackspace(t *testing.T) {
	s := NewState("ab", KeySet{KeyBackspace: true, "b": true})

	_, s, err := Apply(s, KeyEvent{Key: "a", At: t0})
	require.NoError(t, err)

	_, s, err = Apply(s, KeyEvent{Key: KeyBackspace, At: t0})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Cursor)
	assert.True(t, KeySet{KeyBackspace: true}.Supports(KeyBackspace))
}
