package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/DoyleJ11/type-rush-backend/internal/engine"
	"github.com/DoyleJ11/type-rush-backend/internal/passage"
	"github.com/DoyleJ11/type-rush-backend/pkg/types"
)

var ErrWrongPhase = errors.New("not allowed in current phase")
var ErrEmptyMessage = errors.New("empty chat message")
var ErrLeft = errors.New("session has left the room")

const DefaultDuration = 60

type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseTyping   Phase = "typing"
	PhaseFinished Phase = "finished"
)

// Publisher is the outbound half of the broadcast channel.
type Publisher interface {
	Publish(ctx context.Context, msg types.ClientMessage) error
}

type Config struct {
	Duration    int           // countdown seconds, DefaultDuration when zero
	Unsupported engine.KeySet // nil means engine.DefaultUnsupportedKeys
}

// Controller is the per-client state machine. It is not safe for concurrent use;
// Runner serializes every call onto one goroutine.
type Controller struct {
	self    types.Participant
	cfg     Config
	pub     Publisher
	source  passage.Source
	phase   Phase
	left    bool
	typing  engine.State
	timer   int
	metrics engine.Metrics

	board    *Leaderboard
	members  []string
	messages []types.ChatMessage
	peerView map[string]string // display name -> last phase-change seen
}

func NewController(self types.Participant, cfg Config, pub Publisher, source passage.Source) *Controller {
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	return &Controller{
		self:     self,
		cfg:      cfg,
		pub:      pub,
		source:   source,
		phase:    PhaseLobby,
		timer:    cfg.Duration,
		typing:   engine.NewState("", cfg.Unsupported),
		board:    NewLeaderboard(),
		peerView: make(map[string]string),
	}
}

func (c *Controller) Phase() Phase { return c.phase }

// StartTest enters Typing with a fresh passage and tells the room.
func (c *Controller) StartTest(ctx context.Context) error {
	if c.left {
		return ErrLeft
	}
	if c.phase == PhaseTyping {
		return ErrWrongPhase
	}
	text, err := c.source.Next(ctx)
	if err != nil {
		return fmt.Errorf("draw passage: %w", err)
	}
	text = passage.Clamp(text)
	if text == "" {
		return passage.ErrEmptyPassage
	}
	c.enterTyping(text)

	return c.pub.Publish(ctx, types.ClientMessage{
		Type:    types.TypePhaseChange,
		Phase:   types.PhaseTyping,
		Passage: text,
	})
}

func (c *Controller) enterTyping(text string) {
	c.phase = PhaseTyping
	c.typing = engine.NewState(text, c.cfg.Unsupported)
	c.timer = c.cfg.Duration
	c.metrics = engine.Metrics{}
}

// BackToLobby switches the local view and notifies peers.
func (c *Controller) BackToLobby(ctx context.Context) error {
	if c.left {
		return ErrLeft
	}
	if c.phase == PhaseLobby {
		return ErrWrongPhase
	}
	c.phase = PhaseLobby
	c.timer = c.cfg.Duration
	return c.pub.Publish(ctx, types.ClientMessage{Type: types.TypePhaseChange, Phase: types.PhaseLobby})
}

// Key feeds one key event to the typing engine. Rejected keys are not errors.
func (c *Controller) Key(ctx context.Context, key engine.Key, now time.Time) error {
	if c.left {
		return ErrLeft
	}
	if c.phase != PhaseTyping {
		return ErrWrongPhase
	}
	events, next, err := engine.Apply(c.typing, engine.KeyEvent{Key: key, At: now})
	if err != nil {
		return nil
	}
	c.typing = next
	c.metrics = engine.ComputeMetrics(c.typing, now)

	if engine.ContainsEvent(events, engine.EvtCompleted) {
		return c.finish(ctx, now)
	}
	return nil
}

// Tick is the once-per-second countdown step.
func (c *Controller) Tick(ctx context.Context, now time.Time) error {
	if c.left || c.phase != PhaseTyping {
		return nil
	}
	c.timer--
	if c.timer <= 0 {
		c.timer = 0
		return c.finish(ctx, now)
	}
	return c.publishMetrics(ctx, now)
}

func (c *Controller) finish(ctx context.Context, now time.Time) error {
	c.phase = PhaseFinished
	return c.publishMetrics(ctx, now)
}

func (c *Controller) publishMetrics(ctx context.Context, now time.Time) error {
	c.metrics = engine.ComputeMetrics(c.typing, now)
	c.board.Upsert(types.PerformanceSnapshot{DisplayName: c.self.DisplayName, WPM: c.metrics.WPM})
	return c.pub.Publish(ctx, types.ClientMessage{Type: types.TypePerformance, WPM: c.metrics.WPM})
}

// SendChat appends locally and publishes; the server does not echo to the sender.
func (c *Controller) SendChat(ctx context.Context, text string) error {
	if c.left {
		return ErrLeft
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	c.messages = append(c.messages, types.ChatMessage{DisplayName: c.self.DisplayName, Text: text})
	return c.pub.Publish(ctx, types.ClientMessage{Type: types.TypeChat, Text: text})
}

// Receive folds one inbound broadcast into local state.
func (c *Controller) Receive(msg types.ServerMessage) {
	if c.left {
		return
	}
	switch msg.Type {
	case types.TypePerformance:
		c.board.Upsert(types.PerformanceSnapshot{DisplayName: msg.DisplayName, WPM: msg.WPM})

	case types.TypeChat:
		c.messages = append(c.messages, types.ChatMessage{DisplayName: msg.DisplayName, Text: msg.Text})

	case types.TypeMembership:
		c.members = slices.Clone(msg.Members)

	case types.TypePhaseChange:
		c.peerView[msg.DisplayName] = msg.Phase
		// A peer starting a test pulls a participant still in the lobby along.
		if msg.Phase != types.PhaseTyping || c.phase != PhaseLobby {
			break
		}
		if text := passage.Clamp(msg.Passage); text != "" {
			c.enterTyping(text)
		}
	}
}

// Leave tears the session down and tells the server.
func (c *Controller) Leave(ctx context.Context) error {
	if c.left {
		return nil
	}
	c.left = true
	return c.pub.Publish(ctx, types.ClientMessage{Type: types.TypeLeaveRoom})
}

type View struct {
	Participant types.Participant
	Phase       Phase
	Countdown   int
	Metrics     engine.Metrics
	Passage     string
	Cursor      int
	Letters     []engine.Class
	Leaderboard []types.PerformanceSnapshot
	Members     []string
	Messages    []types.ChatMessage
	PeerPhases  map[string]string
}

// View is the rendering data; it shares nothing mutable with the controller.
func (c *Controller) View() View {
	peers := make(map[string]string, len(c.peerView))
	for k, v := range c.peerView {
		peers[k] = v
	}
	return View{
		Participant: c.self,
		Phase:       c.phase,
		Countdown:   c.timer,
		Metrics:     c.metrics,
		Passage:     string(c.typing.Passage),
		Cursor:      c.typing.Cursor,
		Letters:     engine.Classify(c.typing),
		Leaderboard: c.board.Rows(),
		Members:     slices.Clone(c.members),
		Messages:    slices.Clone(c.messages),
		PeerPhases:  peers,
	}
}
