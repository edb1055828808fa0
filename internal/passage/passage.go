package passage

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// MaxLen keeps a passage inside one broadcast frame.
const MaxLen = 2048

// SampleText is served when every configured source fails.
const SampleText = "This is a sample text"

var ErrEmptyPassage = errors.New("empty passage")

type Source interface {
	Next(ctx context.Context) (string, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context) (string, error)

func (f SourceFunc) Next(ctx context.Context) (string, error) { return f(ctx) }

// Clamp normalizes whitespace and cuts at the last word boundary before MaxLen.
func Clamp(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len([]rune(text)) <= MaxLen {
		return text
	}
	r := []rune(text)[:MaxLen]
	if i := strings.LastIndexByte(string(r), ' '); i > 0 {
		return string(r)[:i]
	}
	return string(r)
}

// Fallback tries each source in order and ends with SampleText.
type Fallback struct {
	Sources []Source
	Log     *zap.Logger
}

func NewFallback(log *zap.Logger, sources ...Source) *Fallback {
	return &Fallback{Sources: sources, Log: log}
}

func (f *Fallback) Next(ctx context.Context) (string, error) {
	for i, src := range f.Sources {
		text, err := src.Next(ctx)
		if err == nil {
			text = Clamp(text)
		}
		if err == nil && text == "" {
			err = ErrEmptyPassage
		}
		if err != nil {
			if f.Log != nil {
				f.Log.Warn("passage source failed", zap.Int("source", i), zap.Error(err))
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		return text, nil
	}
	return SampleText, nil
}
