package passage

import (
	"context"
	"embed"
	"io/fs"
	"math/rand"
	"strings"
	"sync"
	"time"
)

//go:embed words/*.txt
var wordsFS embed.FS

const DefaultWordCount = 30

// Words generates passages of Count random words from an embedded list.
type Words struct {
	Count int

	mu   sync.Mutex
	pool []string
	rng  *rand.Rand
}

// NewWords loads the word list for lang, falling back to English.
func NewWords(lang string, count int, seed int64) (*Words, error) {
	if count < 1 {
		count = DefaultWordCount
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	pool, err := loadWords(lang)
	if err != nil || len(pool) == 0 {
		pool, err = loadWords("en")
		if err != nil {
			return nil, err
		}
	}
	return &Words{Count: count, pool: pool, rng: rand.New(rand.NewSource(seed))}, nil
}

func loadWords(lang string) ([]string, error) {
	name := strings.TrimSpace(lang)
	if name == "" {
		name = "en"
	}
	b, err := fs.ReadFile(wordsFS, "words/"+name+".txt")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		if w := strings.TrimSpace(strings.ToLower(line)); w != "" {
			out = append(out, w)
		}
	}
	return out, nil
}

func (w *Words) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	picked := make([]string, w.Count)
	for i := range picked {
		picked[i] = w.pool[w.rng.Intn(len(w.pool))]
	}
	return strings.Join(picked, " "), nil
}
