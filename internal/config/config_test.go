package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/type-rush-backend/pkg/types"
)

func serverFlags(t *testing.T, args ...string) (*Server, *pflag.FlagSet) {
	t.Helper()
	cfg := &Server{}
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return cfg, fs
}

func TestServer_Defaults(t *testing.T) {
	cfg, fs := serverFlags(t)
	require.NoError(t, Load(fs))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, 30, cfg.WordCount)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestServer_EnvFillsUnsetFlags(t *testing.T) {
	t.Setenv("TYPERUSH_PORT", "9090")
	t.Setenv("TYPERUSH_DATABASE_URL", "postgres://localhost/typerush")
	t.Setenv("TYPERUSH_WORDS", "12")

	cfg, fs := serverFlags(t, "--words", "40")
	require.NoError(t, Load(fs))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres://localhost/typerush", cfg.DatabaseURL)
	assert.Equal(t, 40, cfg.WordCount, "explicit flag wins over env")
}

func TestServer_UnderscoreFlagsNormalized(t *testing.T) {
	cfg, _ := serverFlags(t, "--log_level", "debug")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestServer_BadEnv(t *testing.T) {
	t.Setenv("TYPERUSH_PORT", "eighty")
	_, fs := serverFlags(t)
	assert.Error(t, Load(fs))
}

func TestServer_Validate(t *testing.T) {
	cfg, _ := serverFlags(t, "--port", "70000")
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidPort)

	cfg, _ = serverFlags(t, "--words", "0")
	assert.Error(t, cfg.Validate())

	cfg, _ = serverFlags(t, "--read-timeout", "0s")
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidTimeout)

	cfg, _ = serverFlags(t, "--write-timeout", "-1s")
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidTimeout)
}

func TestTypist_Validate(t *testing.T) {
	valid := func() Typist {
		return Typist{URL: "ws://localhost:8080/ws", DisplayName: "ada", RoomID: "r1", WPM: 60, Duration: time.Minute}
	}

	tests := []struct {
		name   string
		mutate func(*Typist)
		is     error
		ok     bool
	}{
		{name: "valid", mutate: func(*Typist) {}, ok: true},
		{name: "missing name", mutate: func(c *Typist) { c.DisplayName = "  " }, is: types.ErrMissingIdentity},
		{name: "missing room", mutate: func(c *Typist) { c.RoomID = "" }, is: types.ErrMissingIdentity},
		{name: "http url", mutate: func(c *Typist) { c.URL = "http://localhost:8080/ws" }},
		{name: "zero wpm", mutate: func(c *Typist) { c.WPM = 0 }},
		{name: "short test", mutate: func(c *Typist) { c.Duration = 500 * time.Millisecond }, is: ErrInvalidDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}
