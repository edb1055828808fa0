package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/type-rush-backend/internal/engine"
	"github.com/DoyleJ11/type-rush-backend/pkg/types"
)

// Channel is the client side of the broadcast channel as the runner sees it.
type Channel interface {
	Publisher
	Messages() <-chan types.ServerMessage
	Close() error
}

type intentKind int

const (
	intentStart intentKind = iota
	intentKey
	intentChat
	intentLobby
	intentLeave
)

type intent struct {
	kind  intentKind
	key   engine.Key
	text  string
	reply chan error
}

type RunnerOptions struct {
	TickEvery time.Duration    // 1s when zero
	Now       func() time.Time // time.Now when nil
	OnRender  func(View)       // called on the runner goroutine after every change
}

// Runner owns a Controller and serializes user intents, inbound broadcasts and
// countdown ticks onto one goroutine.
type Runner struct {
	ctrl *Controller
	ch   Channel
	opts RunnerOptions
	log  *zap.Logger

	intents chan intent
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewRunner(ctrl *Controller, ch Channel, opts RunnerOptions, log *zap.Logger) *Runner {
	if opts.TickEvery <= 0 {
		opts.TickEvery = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		ctrl:    ctrl,
		ch:      ch,
		opts:    opts,
		log:     log,
		intents: make(chan intent),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

// Done is closed once the loop has stopped; nothing fires after that.
func (r *Runner) Done() <-chan struct{} { return r.done }

func (r *Runner) StartTest(ctx context.Context) error { return r.do(ctx, intent{kind: intentStart}) }

func (r *Runner) Key(ctx context.Context, key engine.Key) error {
	return r.do(ctx, intent{kind: intentKey, key: key})
}

func (r *Runner) Chat(ctx context.Context, text string) error {
	return r.do(ctx, intent{kind: intentChat, text: text})
}

func (r *Runner) BackToLobby(ctx context.Context) error { return r.do(ctx, intent{kind: intentLobby}) }

// Leave notifies the room, stops the loop and closes the channel.
func (r *Runner) Leave(ctx context.Context) error {
	err := r.do(ctx, intent{kind: intentLeave})
	if errors.Is(err, ErrLeft) {
		err = nil
	}
	return multierr.Append(err, r.Close())
}

// Close stops the loop without notifying the room; the server sees a disconnect.
func (r *Runner) Close() error {
	r.cancel()
	<-r.done
	return r.ch.Close()
}

func (r *Runner) do(ctx context.Context, in intent) error {
	in.reply = make(chan error, 1)
	select {
	case r.intents <- in:
	case <-r.done:
		return ErrLeft
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-in.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) loop() {
	defer close(r.done)

	var ticker *time.Ticker
	var tickC <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-r.ctx.Done():
			return

		case in := <-r.intents:
			err := r.handle(in)
			in.reply <- err
			if in.kind == intentLeave {
				return
			}

		case msg, ok := <-r.ch.Messages():
			if !ok {
				r.log.Info("broadcast channel closed")
				return
			}
			if msg.Type == types.TypeError {
				r.log.Warn("server error", zap.String("error", msg.Error))
				continue
			}
			r.ctrl.Receive(msg)

		case <-tickC:
			if err := r.ctrl.Tick(r.ctx, r.opts.Now()); err != nil {
				r.log.Warn("publish snapshot failed", zap.Error(err))
			}
		}

		switch typing := r.ctrl.Phase() == PhaseTyping; {
		case typing && ticker == nil:
			ticker = time.NewTicker(r.opts.TickEvery)
			tickC = ticker.C
		case !typing && ticker != nil:
			ticker.Stop()
			ticker, tickC = nil, nil
		}

		if r.opts.OnRender != nil {
			r.opts.OnRender(r.ctrl.View())
		}
	}
}

func (r *Runner) handle(in intent) error {
	switch in.kind {
	case intentStart:
		return r.ctrl.StartTest(r.ctx)
	case intentKey:
		return r.ctrl.Key(r.ctx, in.key, r.opts.Now())
	case intentChat:
		return r.ctrl.SendChat(r.ctx, in.text)
	case intentLobby:
		return r.ctrl.BackToLobby(r.ctx)
	case intentLeave:
		return r.ctrl.Leave(r.ctx)
	}
	return nil
}
