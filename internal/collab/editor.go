package collab

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/PaulBabatuyi/classroom-chat/internal/data"
)

// DefaultDebounce coalesces keystrokes into one write per window.
const DefaultDebounce = 500 * time.Millisecond

// ErrEditorClosed is returned by writes after Close.
var ErrEditorClosed = errors.New("collab: editor closed")

// WriteFunc persists the editor buffer and returns the store timestamp of
// the revision it produced.
type WriteFunc func(ctx context.Context, e data.DocumentEdit) (time.Time, error)

// Editor is the local buffer of a live document. Local edits are written
// through a debounce window; remote updates overwrite the buffer. A pending
// write is flushed on Close, never dropped.
type Editor struct {
	ctx     context.Context
	window  time.Duration
	write   WriteFunc
	onError func(error)

	mu      sync.Mutex
	buf     data.DocumentEdit
	version uint64 // bumped by every local edit
	dirty   bool
	sent    *data.DocumentEdit // last buffer handed to write
	acked   time.Time          // newest revision known to be in the store
	timer   *time.Timer
	closed  bool

	writeMu sync.Mutex // serializes writes so they land in edit order
}

// NewEditor returns an editor seeded with initial, the revision stored at
// initialAt. Timer-driven flushes use ctx and report failures to onError
// (which may be nil).
func NewEditor(ctx context.Context, initial data.DocumentEdit, initialAt time.Time, window time.Duration, write WriteFunc, onError func(error)) *Editor {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Editor{ctx: ctx, window: window, write: write, onError: onError, buf: initial, acked: initialAt}
}

// Type replaces the local buffer and (re)arms the debounce timer.
func (e *Editor) Type(edit data.DocumentEdit) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEditorClosed
	}
	e.buf = edit
	e.version++
	e.dirty = true
	if e.timer == nil {
		e.timer = time.AfterFunc(e.window, e.onTimer)
	} else {
		e.timer.Reset(e.window)
	}
	return nil
}

// ApplyRemote overwrites the local buffer with the revision stored at at,
// dropping any unflushed local edit. Revisions no newer than the last one
// this editor knows the store holds are ignored, and so is the echo of its
// own write while keystrokes typed after it are pending. A zero at skips the
// ordering check.
func (e *Editor) ApplyRemote(remote data.DocumentEdit, at time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	if !at.IsZero() && !at.After(e.acked) {
		return false
	}
	if at.After(e.acked) {
		e.acked = at
	}
	if sameContent(e.buf, remote) {
		return false
	}
	if e.dirty && e.sent != nil && sameContent(*e.sent, remote) {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.buf = remote
	e.dirty = false
	return true
}

// Buffer returns the current local buffer.
func (e *Editor) Buffer() data.DocumentEdit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf
}

// Pending reports whether a local edit waits for the debounce window.
func (e *Editor) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Flush writes the buffer now if it has unwritten local edits.
func (e *Editor) Flush(ctx context.Context) error {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
	}
	e.mu.Unlock()
	return e.flush(ctx, false)
}

// Close stops accepting edits and writes the one still pending. Calling it
// again retries a write that failed.
func (e *Editor) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
	}
	e.mu.Unlock()
	return e.flush(ctx, true)
}

func (e *Editor) onTimer() {
	if err := e.flush(e.ctx, false); err != nil && e.onError != nil {
		e.onError(err)
	}
}

// flush writes the buffer if it is dirty. After Close only the final flush
// writes.
func (e *Editor) flush(ctx context.Context, final bool) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.Lock()
	if !e.dirty || (e.closed && !final) {
		e.mu.Unlock()
		return nil
	}
	edit, version := e.buf, e.version
	e.dirty = false
	e.sent = &edit
	e.mu.Unlock()

	at, err := e.write(ctx, edit)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		// keep the edit pending unless newer typing or a remote update replaced it
		if e.version == version && sameContent(e.buf, edit) {
			e.dirty = true
		}
		e.sent = nil
		return err
	}
	if at.After(e.acked) {
		e.acked = at
	}
	return nil
}

func sameContent(a, b data.DocumentEdit) bool {
	return a.Text == b.Text && a.Language == b.Language && a.LastInput == b.LastInput
}
