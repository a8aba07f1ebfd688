package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AutosaveDelay is the quiet period after the last edit before a save starts.
const AutosaveDelay = 800 * time.Millisecond

// DraftSaver persists drafts. *APIClient implements it.
type DraftSaver interface {
	CreateDraft(ctx context.Context, d Draft) (Post, error)
	UpdatePost(ctx context.Context, id string, d Draft) (Post, error)
}

// Autosaver debounces edits into saves. At most one save runs at a time and
// a running save is never cancelled; a timer that fires during a save is
// pushed back by another quiet period. A save that completes after Reset
// belongs to the abandoned draft and leaves the new state untouched.
type Autosaver struct {
	saver  DraftSaver
	delay  time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	epoch   uint64
	pending *Draft
	saving  bool
	draftID string
	lastErr error
	changed chan struct{}
	onSaved func(Post)
}

// NewAutosaver returns an Autosaver with the default delay. logger may be nil.
func NewAutosaver(saver DraftSaver, logger *zap.Logger) *Autosaver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Autosaver{saver: saver, delay: AutosaveDelay, logger: logger, changed: make(chan struct{})}
}

// SetDelay overrides the quiet period.
func (a *Autosaver) SetDelay(d time.Duration) {
	a.mu.Lock()
	a.delay = d
	a.mu.Unlock()
}

// OnSaved registers a callback run after every successful save.
func (a *Autosaver) OnSaved(fn func(Post)) {
	a.mu.Lock()
	a.onSaved = fn
	a.mu.Unlock()
}

// DraftID is the server id of the draft, empty until the first save succeeds.
func (a *Autosaver) DraftID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.draftID
}

// Reset forgets any pending edit and points later saves at id ("" creates a new draft).
func (a *Autosaver) Reset(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopTimerLocked()
	a.epoch++
	a.pending = nil
	a.draftID = id
	a.lastErr = nil
	a.notifyLocked()
}

// Schedule records d as the latest state and restarts the quiet period.
func (a *Autosaver) Schedule(d Draft) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = &d
	a.stopTimerLocked()
	a.startTimerLocked()
}

// Flush saves any pending edit now and waits until no save is running.
// It returns the error of the last save.
func (a *Autosaver) Flush(ctx context.Context) error {
	for {
		a.mu.Lock()
		if !a.saving && a.pending != nil {
			a.stopTimerLocked()
			d, id, epoch := a.takePendingLocked()
			a.mu.Unlock()
			a.save(epoch, id, d)
			continue
		}
		if !a.saving && a.timer == nil {
			err := a.lastErr
			a.mu.Unlock()
			return err
		}
		wait := a.changed
		a.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

func (a *Autosaver) startTimerLocked() {
	a.gen++
	gen := a.gen
	a.timer = time.AfterFunc(a.delay, func() { a.fire(gen) })
}

func (a *Autosaver) stopTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++
}

func (a *Autosaver) fire(gen uint64) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	if a.saving {
		a.startTimerLocked()
		a.mu.Unlock()
		return
	}
	if a.pending == nil {
		a.notifyLocked()
		a.mu.Unlock()
		return
	}
	d, id, epoch := a.takePendingLocked()
	a.mu.Unlock()
	a.save(epoch, id, d)
}

func (a *Autosaver) takePendingLocked() (Draft, string, uint64) {
	d := *a.pending
	a.pending = nil
	a.saving = true
	a.notifyLocked()
	return d, a.draftID, a.epoch
}

func (a *Autosaver) save(epoch uint64, id string, d Draft) {
	var (
		post Post
		err  error
	)
	ctx := context.Background()
	if id == "" {
		post, err = a.saver.CreateDraft(ctx, d)
	} else {
		post, err = a.saver.UpdatePost(ctx, id, d)
	}

	a.mu.Lock()
	a.saving = false
	stale := epoch != a.epoch
	var cb func(Post)
	if !stale {
		a.lastErr = err
		if err == nil && post.ID != "" {
			a.draftID = post.ID
		}
		cb = a.onSaved
	}
	a.notifyLocked()
	a.mu.Unlock()

	if stale {
		a.logger.Debug("discarding save of abandoned draft", zap.String("draft", post.ID), zap.Error(err))
		return
	}
	if err != nil {
		a.logger.Warn("autosave failed", zap.String("draft", id), zap.Error(err))
		return
	}
	if cb != nil {
		cb(post)
	}
}

func (a *Autosaver) notifyLocked() {
	close(a.changed)
	a.changed = make(chan struct{})
}
