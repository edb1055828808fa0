package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/type-rush-backend/internal/broadcast"
	"github.com/DoyleJ11/type-rush-backend/internal/config"
	"github.com/DoyleJ11/type-rush-backend/internal/engine"
	"github.com/DoyleJ11/type-rush-backend/internal/logging"
	"github.com/DoyleJ11/type-rush-backend/internal/passage"
	"github.com/DoyleJ11/type-rush-backend/internal/session"
	"github.com/DoyleJ11/type-rush-backend/pkg/types"
)

const releaseVersion = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config.Typist{}
	cobra.CheckErr(newCmd(cfg).ExecuteContext(ctx))
}

func newCmd(cfg *config.Typist) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "typist",
		Short:         "Joins a room and types the passage at a steady pace.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(cmd.Flags()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	cfg.BindFlags(cmd.Flags())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	return cmd
}

// views keeps the most recent render and wakes one waiter per change.
type views struct {
	mu      sync.Mutex
	v       session.View
	changed chan struct{}
}

func newViews() *views { return &views{changed: make(chan struct{}, 1)} }

func (vs *views) set(v session.View) {
	vs.mu.Lock()
	vs.v = v
	vs.mu.Unlock()
	select {
	case vs.changed <- struct{}{}:
	default:
	}
}

func (vs *views) get() session.View {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.v
}

func (vs *views) waitFor(ctx context.Context, done <-chan struct{}, ok func(session.View) bool) (session.View, error) {
	for {
		if v := vs.get(); ok(v) {
			return v, nil
		}
		select {
		case <-vs.changed:
		case <-done:
			return session.View{}, session.ErrLeft
		case <-ctx.Done():
			return session.View{}, ctx.Err()
		}
	}
}

func run(ctx context.Context, cfg *config.Typist, out io.Writer) (err error) {
	log, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	p, err := types.NewParticipant(cfg.DisplayName, cfg.RoomID)
	if err != nil {
		return err
	}
	ch, err := broadcast.Dial(ctx, cfg.URL, p, broadcast.DefaultOptions(), log)
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	words, err := passage.NewWords("en", passage.DefaultWordCount, 0)
	if err != nil {
		return multierr.Append(err, ch.Close())
	}
	src := passage.NewFallback(log, passage.NewRemote(httpBase(cfg.URL)), words)

	ctrl := session.NewController(p, session.Config{Duration: int(cfg.Duration / time.Second)}, ch, src)
	vs := newViews()
	r := session.NewRunner(ctrl, ch, session.RunnerOptions{OnRender: vs.set}, log)
	defer func() {
		if lerr := r.Leave(context.Background()); lerr != nil && !errors.Is(lerr, broadcast.ErrClosed) {
			err = multierr.Append(err, lerr)
		}
	}()

	if cfg.Start {
		if err := r.StartTest(ctx); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "waiting in room %s for someone to start\n", p.RoomID)
	}

	v, err := vs.waitFor(ctx, r.Done(), func(v session.View) bool { return v.Phase == session.PhaseTyping })
	if err != nil {
		return err
	}
	if err := typePassage(ctx, r, v.Passage, cfg.WPM); err != nil {
		return err
	}

	v, err = vs.waitFor(ctx, r.Done(), func(v session.View) bool { return v.Phase == session.PhaseFinished })
	if err != nil {
		return err
	}
	log.Debug("test finished", zap.Int("wpm", v.Metrics.WPM), zap.Int("accuracy", v.Metrics.Accuracy))
	printLeaderboard(out, v)
	return nil
}

// typePassage sends one key per character at wpm words (five characters) per minute.
func typePassage(ctx context.Context, r *session.Runner, text string, wpm int) error {
	every := time.Minute / time.Duration(wpm*5)
	t := time.NewTicker(every)
	defer t.Stop()

	for _, c := range text {
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		err := r.Key(ctx, engine.Key(string(c)))
		if errors.Is(err, session.ErrWrongPhase) {
			// countdown ran out first
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func printLeaderboard(out io.Writer, v session.View) {
	fmt.Fprintf(out, "\nroom %s  you: %d wpm, %d cpm, %d%% accuracy\n\n", v.Participant.RoomID, v.Metrics.WPM, v.Metrics.CPM, v.Metrics.Accuracy)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tWPM")
	for i, row := range v.Leaderboard {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", i+1, row.DisplayName, row.WPM)
	}
	_ = tw.Flush()
}

// httpBase maps ws://host/ws to http://host for the passage endpoint.
func httpBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}
	u.Path = strings.TrimSuffix(u.Path, "/ws")
	u.RawQuery = ""
	return strings.TrimSuffix(u.String(), "/")
}
