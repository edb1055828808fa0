package broadcast

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/type-rush-backend/pkg/types"
)

var ErrClosed = errors.New("broadcast channel closed")

type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Buffer           int
}

func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		Buffer:           64,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = d.HandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.Buffer <= 0 {
		o.Buffer = d.Buffer
	}
	return o
}

type writeReq struct {
	msg  types.ClientMessage
	done chan error
}

// Channel is one participant's connection to a room.
type Channel struct {
	conn *websocket.Conn
	opts Options
	log  *zap.Logger

	msgs    chan types.ServerMessage
	writeCh chan writeReq

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the server's /ws endpoint and enters p's room.
func Dial(ctx context.Context, url string, p types.Participant, opts Options, log *zap.Logger) (*Channel, error) {
	opts = opts.withDefaults()
	dialCtx, cancel := context.WithTimeout(ctx, opts.HandshakeTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		return nil, err
	}

	enter := types.ClientMessage{Type: types.TypeEnterRoom, DisplayName: p.DisplayName, RoomID: p.RoomID}
	if err := wsjson.Write(dialCtx, conn, enter); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "handshake error")
		return nil, err
	}

	runCtx, stop := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	c := &Channel{
		conn:    conn,
		opts:    opts,
		log:     log.With(zap.String("room_id", p.RoomID), zap.String("display_name", p.DisplayName)),
		msgs:    make(chan types.ServerMessage, opts.Buffer),
		writeCh: make(chan writeReq),
		ctx:     gctx,
		cancel:  stop,
		group:   g,
	}
	g.Go(func() error { return c.readLoop(gctx) })
	g.Go(func() error { return c.writeLoop(gctx) })
	return c, nil
}

// Messages yields inbound events in arrival order and is closed when the connection ends.
func (c *Channel) Messages() <-chan types.ServerMessage { return c.msgs }

// Publish returns once msg has been written to the socket.
func (c *Channel) Publish(ctx context.Context, msg types.ClientMessage) error {
	req := writeReq{msg: msg, done: make(chan error, 1)}
	select {
	case c.writeCh <- req:
	case <-c.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-c.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close(websocket.StatusNormalClosure, "client close")
		if err := c.group.Wait(); err != nil && !isExpectedDisconnect(err) {
			c.closeErr = err
		}
	})
	return c.closeErr
}

func (c *Channel) readLoop(ctx context.Context) error {
	defer close(c.msgs)
	for {
		var msg types.ServerMessage
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			if ctx.Err() != nil || isExpectedDisconnect(err) {
				c.log.Debug("read loop exit", zap.Error(err))
				return nil
			}
			c.log.Warn("read loop exit", zap.Error(err))
			return err
		}
		select {
		case c.msgs <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Channel) writeLoop(ctx context.Context) error {
	for {
		select {
		case req := <-c.writeCh:
			wctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
			err := wsjson.Write(wctx, c.conn, req.msg)
			cancel()
			req.done <- err
			if err != nil {
				c.log.Warn("write loop exit", zap.Error(err))
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func isExpectedDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
