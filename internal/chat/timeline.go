package chat

import (
	"context"
	"sync"

	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
	"github.com/google/uuid"
)

// PageLoader fetches one page for a predicate, already reversed to display
// order (oldest first), plus whether older pages remain.
type PageLoader interface {
	LoadPage(ctx context.Context, pred Predicate, page int) ([]models.Message, bool, error)
}

// PageLoaderFunc adapts a function to the PageLoader interface.
type PageLoaderFunc func(ctx context.Context, pred Predicate, page int) ([]models.Message, bool, error)

func (f PageLoaderFunc) LoadPage(ctx context.Context, pred Predicate, page int) ([]models.Message, bool, error) {
	return f(ctx, pred, page)
}

// ServiceLoader builds a PageLoader on top of the chat service.
func ServiceLoader(svc Service) PageLoader {
	return PageLoaderFunc(func(ctx context.Context, pred Predicate, page int) ([]models.Message, bool, error) {
		result, err := svc.History(ctx, HistoryParams{
			ViewerID: pred.ViewerID,
			Kind:     pred.Kind,
			PeerID:   pred.PeerID,
			Page:     page,
		})
		if err != nil {
			return nil, false, err
		}
		return result.Messages, result.HasMore, nil
	})
}

// Timeline is the in-memory view of one open conversation: an ordered buffer
// fed from the head by backfill pages and from the tail by live feed events.
// All methods are safe for concurrent use; loads run outside the lock and
// stale responses are discarded by epoch comparison.
type Timeline struct {
	mu     sync.Mutex
	loader PageLoader

	pred   Predicate
	active bool
	epoch  uint64

	buffer   []models.Message
	index    map[uuid.UUID]struct{}
	nextPage int
	hasMore  bool
	loading  bool
	atTail   bool
}

// IngestResult reports what a live feed event did to the buffer.
type IngestResult struct {
	// Appended is true when the event was added to the buffer tail.
	Appended bool
	// AutoScroll is true when the viewer was at the tail before the append
	// and the display should follow the new row.
	AutoScroll bool
}

// NewTimeline builds an empty timeline around the provided loader.
func NewTimeline(loader PageLoader) *Timeline {
	return &Timeline{
		loader: loader,
		index:  make(map[uuid.UUID]struct{}),
		atTail: true,
	}
}

// SwitchContext activates a new predicate: any in-flight load for the old
// predicate becomes stale, the buffer is replaced wholesale by page 0, and
// backfill state resets. Returns the new buffer contents.
func (t *Timeline) SwitchContext(ctx context.Context, pred Predicate) ([]models.Message, error) {
	t.mu.Lock()
	t.epoch++
	epoch := t.epoch
	t.pred = pred
	t.active = true
	t.buffer = nil
	t.index = make(map[uuid.UUID]struct{})
	t.nextPage = 0
	t.hasMore = false
	t.loading = true
	t.atTail = true
	t.mu.Unlock()

	page, hasMore, err := t.loader.LoadPage(ctx, pred, 0)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.epoch != epoch {
		// Another switch happened while this load was in flight.
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "conversation context changed")
	}
	t.loading = false
	if err != nil {
		return nil, err
	}

	t.buffer = make([]models.Message, 0, len(page))
	for _, msg := range page {
		t.appendLocked(msg)
	}
	t.nextPage = 1
	t.hasMore = hasMore
	return t.snapshotLocked(), nil
}

// Backfill loads the next older page and prepends it to the buffer head.
// Returns how many rows were added above the fold; callers adjust the
// viewer's scroll offset by exactly that count. Single-flight per predicate:
// a call while another load is running is a no-op.
func (t *Timeline) Backfill(ctx context.Context) (int, error) {
	t.mu.Lock()
	if !t.active || t.loading || !t.hasMore {
		t.mu.Unlock()
		return 0, nil
	}
	t.loading = true
	epoch := t.epoch
	pred := t.pred
	page := t.nextPage
	t.mu.Unlock()

	rows, hasMore, err := t.loader.LoadPage(ctx, pred, page)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.epoch != epoch {
		return 0, nil
	}
	t.loading = false
	if err != nil {
		// Buffer untouched and hasMore stays true so a retry is possible.
		return 0, err
	}

	fresh := make([]models.Message, 0, len(rows))
	for _, msg := range rows {
		if _, seen := t.index[msg.ID]; seen {
			continue
		}
		t.index[msg.ID] = struct{}{}
		fresh = append(fresh, msg)
	}
	t.buffer = append(fresh, t.buffer...)
	t.nextPage = page + 1
	t.hasMore = hasMore
	return len(fresh), nil
}

// Ingest merges a live feed event into the buffer. Events for other
// conversations and duplicates of already-buffered rows are discarded.
func (t *Timeline) Ingest(msg models.Message) IngestResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active || !t.pred.Matches(msg) {
		return IngestResult{}
	}
	if _, seen := t.index[msg.ID]; seen {
		return IngestResult{}
	}
	t.appendLocked(msg)
	return IngestResult{Appended: true, AutoScroll: t.atTail}
}

// Resync replaces the buffer with a fresh page 0 for the current predicate.
// Used after a feed reconnect, when events may have been lost.
func (t *Timeline) Resync(ctx context.Context) ([]models.Message, error) {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "no active conversation")
	}
	pred := t.pred
	t.mu.Unlock()
	return t.SwitchContext(ctx, pred)
}

// SetAtTail records whether the viewer is reading the newest row. While
// scrolled up into history, new rows must not yank the viewport.
func (t *Timeline) SetAtTail(atTail bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.atTail = atTail
}

// HasMore reports whether older pages remain for the active predicate.
func (t *Timeline) HasMore() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasMore
}

// Predicate returns the currently active predicate.
func (t *Timeline) Predicate() (Predicate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pred, t.active
}

// Snapshot copies the buffer in display order.
func (t *Timeline) Snapshot() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Timeline) appendLocked(msg models.Message) {
	t.index[msg.ID] = struct{}{}
	t.buffer = append(t.buffer, msg)
}

func (t *Timeline) snapshotLocked() []models.Message {
	out := make([]models.Message, len(t.buffer))
	copy(out, t.buffer)
	return out
}
