package admission

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/sma-console/internal/models"
)

// DefaultLookupDelay is the quiet period before a parent lookup is sent.
const DefaultLookupDelay = 300 * time.Millisecond

// ParentSearcher finds existing parents by name.
type ParentSearcher interface {
	SearchParents(ctx context.Context, term string) ([]models.Row, error)
}

// Lookup debounces parent autocomplete. Only the latest query within the
// delay reaches the backend; superseded callers get an empty result.
type Lookup struct {
	delay time.Duration

	mu  sync.Mutex
	gen uint64
}

// NewLookup creates a debouncer with the given quiet period.
func NewLookup(delay time.Duration) *Lookup {
	if delay <= 0 {
		delay = DefaultLookupDelay
	}
	return &Lookup{delay: delay}
}

// Query waits out the delay and searches unless a newer query arrived.
func (l *Lookup) Query(ctx context.Context, search ParentSearcher, term string) ([]models.Row, error) {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.mu.Unlock()

	term = strings.TrimSpace(term)
	if term == "" {
		return []models.Row{}, nil
	}

	timer := time.NewTimer(l.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	l.mu.Lock()
	latest := gen == l.gen
	l.mu.Unlock()
	if !latest {
		return []models.Row{}, nil
	}

	rows, err := search.SearchParents(ctx, term)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Row{}
	}
	return rows, nil
}
