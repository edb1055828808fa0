package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/DoyleJ11/type-rush-backend/pkg/types"
)

const EnvPrefix = "TYPERUSH"

var (
	ErrInvalidPort     = errors.New("invalid port (must be between 1-65535 inclusive)")
	ErrInvalidDuration = errors.New("test duration must be at least one second")
	ErrInvalidTimeout  = errors.New("timeouts must be positive")
)

// Server configures cmd/server.
type Server struct {
	Bind         string
	Port         int
	DatabaseURL  string
	SeedCount    int
	WordCount    int
	Language     string
	Origins      []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	OutboxSize   int
	LogLevel     string
	Dev          bool
}

func (c *Server) Addr() string { return fmt.Sprintf("%s:%d", c.Bind, c.Port) }

func (c *Server) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.WordCount < 1 {
		return fmt.Errorf("word count must be positive: %d", c.WordCount)
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: read %v, write %v", ErrInvalidTimeout, c.ReadTimeout, c.WriteTimeout)
	}
	if c.OutboxSize < 1 {
		return fmt.Errorf("outbox size must be positive: %d", c.OutboxSize)
	}
	return nil
}

func (c *Server) BindFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(normalize)
	fs.StringVarP(&c.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: TYPERUSH_BIND)")
	fs.IntVarP(&c.Port, "port", "p", 8080, "port to listen on (env: TYPERUSH_PORT)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "postgres DSN for the passage bank, word list only when empty (env: TYPERUSH_DATABASE_URL)")
	fs.IntVar(&c.SeedCount, "seed-passages", 20, "generated passages added to the bank at startup (env: TYPERUSH_SEED_PASSAGES)")
	fs.IntVar(&c.WordCount, "words", 30, "words per generated passage (env: TYPERUSH_WORDS)")
	fs.StringVar(&c.Language, "language", "en", "word list language (env: TYPERUSH_LANGUAGE)")
	fs.StringSliceVar(&c.Origins, "origins", nil, "allowed websocket origin patterns (env: TYPERUSH_ORIGINS)")
	fs.DurationVar(&c.ReadTimeout, "read-timeout", 10*time.Minute, "idle time before a connection is dropped (env: TYPERUSH_READ_TIMEOUT)")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", 3*time.Second, "per-frame write deadline (env: TYPERUSH_WRITE_TIMEOUT)")
	fs.IntVar(&c.OutboxSize, "outbox", 32, "queued frames per connection before it is dropped (env: TYPERUSH_OUTBOX)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug, info, warn or error (env: TYPERUSH_LOG_LEVEL)")
	fs.BoolVar(&c.Dev, "dev", false, "human readable logs (env: TYPERUSH_DEV)")
}

// Typist configures cmd/typist.
type Typist struct {
	URL         string
	DisplayName string
	RoomID      string
	WPM         int
	Duration    time.Duration
	Start       bool
	LogLevel    string
	Dev         bool
}

func (c *Typist) Validate() error {
	if _, err := types.NewParticipant(c.DisplayName, c.RoomID); err != nil {
		return err
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("server url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server url must use ws or wss: %q", c.URL)
	}
	if c.WPM < 1 {
		return fmt.Errorf("wpm must be positive: %d", c.WPM)
	}
	if c.Duration < time.Second {
		return ErrInvalidDuration
	}
	return nil
}

func (c *Typist) BindFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(normalize)
	fs.StringVarP(&c.URL, "url", "u", "ws://localhost:8080/ws", "server websocket url (env: TYPERUSH_URL)")
	fs.StringVarP(&c.DisplayName, "name", "n", "", "display name (env: TYPERUSH_NAME)")
	fs.StringVarP(&c.RoomID, "room", "r", "", "room to enter (env: TYPERUSH_ROOM)")
	fs.IntVar(&c.WPM, "wpm", 60, "typing speed to simulate (env: TYPERUSH_WPM)")
	fs.DurationVar(&c.Duration, "duration", 60*time.Second, "test length (env: TYPERUSH_DURATION)")
	fs.BoolVar(&c.Start, "start", false, "start the test instead of waiting for a peer (env: TYPERUSH_START)")
	fs.StringVar(&c.LogLevel, "log-level", "warn", "debug, info, warn or error (env: TYPERUSH_LOG_LEVEL)")
	fs.BoolVar(&c.Dev, "dev", false, "human readable logs (env: TYPERUSH_DEV)")
}

// Load fills unset flags from TYPERUSH_* environment variables, after
// reading a .env file when one is present.
func Load(fs *pflag.FlagSet) error {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if err != nil || f.Changed || !v.IsSet(f.Name) {
			return
		}
		if setErr := fs.Set(f.Name, v.GetString(f.Name)); setErr != nil {
			err = fmt.Errorf("%s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), setErr)
		}
	})
	return err
}

func normalize(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}
