package collab

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/classroom-chat/internal/data"
	"github.com/PaulBabatuyi/classroom-chat/internal/feed"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(data.NewMemoryStore(feed.NewBroker(), nil), zap.NewNop())
}

func next[T any](t *testing.T, ch <-chan feed.Snapshot[T]) feed.Snapshot[T] {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "stream closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot")
	}
	return feed.Snapshot[T]{}
}

func TestCreateAndOpenSnapshot(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	d, err := s.Create(ctx, "alice", "print(1)", "python")
	require.NoError(t, err)
	require.NotEmpty(t, d.ID)
	assert.Equal(t, "alice", d.OwnerID)

	got, err := s.OpenSnapshot(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "print(1)", got.Text)
	assert.Equal(t, "python", got.Language)

	_, err = s.OpenSnapshot(ctx, "missing")
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestOpenLive_SeesEveryOverwrite(t *testing.T) {
	s := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := s.Create(ctx, "alice", "", "go")
	require.NoError(t, err)

	live := s.OpenLive(ctx, d.ID)
	first := next(t, live)
	require.NoError(t, first.Err)
	assert.Empty(t, first.Value.Text)

	// any holder of the share link may write
	_, err = s.Edit(ctx, d.ID, data.DocumentEdit{Text: "package main", LastInput: "n"})
	require.NoError(t, err)

	snap := next(t, live)
	require.NoError(t, snap.Err)
	assert.Equal(t, "package main", snap.Value.Text)
	assert.Equal(t, "go", snap.Value.Language, "empty language keeps the current one")
	assert.Equal(t, "n", snap.Value.LastInput)
}

func TestOpenLive_MissingDocument(t *testing.T) {
	s := newTestService(t)
	snap := next(t, s.OpenLive(context.Background(), "missing"))
	assert.ErrorIs(t, snap.Err, data.ErrNotFound)
}

func TestEdit_LastWriterWins(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d, err := s.Create(ctx, "alice", "a", "go")
	require.NoError(t, err)

	_, err = s.Edit(ctx, d.ID, data.DocumentEdit{Text: "from alice"})
	require.NoError(t, err)
	_, err = s.Edit(ctx, d.ID, data.DocumentEdit{Text: "from bob"})
	require.NoError(t, err)

	got, err := s.OpenSnapshot(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "from bob", got.Text)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestFork_IsIndependentCopy(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d, err := s.Create(ctx, "alice", "x := 1", "go")
	require.NoError(t, err)

	f, err := s.Fork(ctx, "bob", d.ID)
	require.NoError(t, err)
	assert.NotEqual(t, d.ID, f.ID)
	assert.Equal(t, "bob", f.OwnerID)
	assert.Equal(t, "x := 1", f.Text)

	_, err = s.Edit(ctx, f.ID, data.DocumentEdit{Text: "x := 2"})
	require.NoError(t, err)
	orig, err := s.OpenSnapshot(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "x := 1", orig.Text)

	_, err = s.Fork(ctx, "bob", "missing")
	assert.ErrorIs(t, err, data.ErrNotFound)
}

type recordingWriter struct {
	mu     sync.Mutex
	writes []data.DocumentEdit
	err    error
}

// writerEpoch stamps the revisions recordingWriter acknowledges: the nth
// write is stored at writerEpoch + n ms.
var writerEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func (w *recordingWriter) write(_ context.Context, e data.DocumentEdit) (time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return time.Time{}, w.err
	}
	w.writes = append(w.writes, e)
	return writerEpoch.Add(time.Duration(len(w.writes)) * time.Millisecond), nil
}

func (w *recordingWriter) all() []data.DocumentEdit {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]data.DocumentEdit(nil), w.writes...)
}

func TestEditor_DebouncesKeystrokes(t *testing.T) {
	w := &recordingWriter{}
	e := NewEditor(context.Background(), data.DocumentEdit{}, writerEpoch, 30*time.Millisecond, w.write, nil)

	for _, s := range []string{"f", "fu", "fun", "func"} {
		require.NoError(t, e.Type(data.DocumentEdit{Text: s}))
	}
	assert.True(t, e.Pending())

	require.Eventually(t, func() bool { return len(w.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "func", w.all()[0].Text)
	assert.False(t, e.Pending())
}

func TestEditor_CloseFlushesPendingWrite(t *testing.T) {
	w := &recordingWriter{}
	e := NewEditor(context.Background(), data.DocumentEdit{}, writerEpoch, time.Hour, w.write, nil)

	require.NoError(t, e.Type(data.DocumentEdit{Text: "unsaved"}))
	require.NoError(t, e.Close(context.Background()))

	require.Len(t, w.all(), 1)
	assert.Equal(t, "unsaved", w.all()[0].Text)
	assert.ErrorIs(t, e.Type(data.DocumentEdit{Text: "late"}), ErrEditorClosed)
}

func TestEditor_RemoteOverwritesBuffer(t *testing.T) {
	w := &recordingWriter{}
	e := NewEditor(context.Background(), data.DocumentEdit{Text: "base"}, writerEpoch, time.Hour, w.write, nil)

	require.NoError(t, e.Type(data.DocumentEdit{Text: "local"}))
	assert.True(t, e.ApplyRemote(data.DocumentEdit{Text: "remote"}, writerEpoch.Add(time.Second)))
	assert.Equal(t, "remote", e.Buffer().Text)
	assert.False(t, e.Pending(), "the unflushed local edit is clobbered")

	require.NoError(t, e.Close(context.Background()))
	assert.Empty(t, w.all())
}

func TestEditor_IgnoresEchoOfOwnWrite(t *testing.T) {
	w := &recordingWriter{}
	e := NewEditor(context.Background(), data.DocumentEdit{}, writerEpoch, time.Hour, w.write, nil)

	require.NoError(t, e.Type(data.DocumentEdit{Text: "one"}))
	require.NoError(t, e.Flush(context.Background()))
	require.NoError(t, e.Type(data.DocumentEdit{Text: "one two"}))

	// a feed without revision stamps still cannot roll back newer typing
	assert.False(t, e.ApplyRemote(data.DocumentEdit{Text: "one"}, time.Time{}))
	assert.Equal(t, "one two", e.Buffer().Text)
	assert.True(t, e.Pending())
}

func TestEditor_IgnoresStaleRevisions(t *testing.T) {
	w := &recordingWriter{}
	e := NewEditor(context.Background(), data.DocumentEdit{}, writerEpoch, time.Hour, w.write, nil)
	ctx := context.Background()

	require.NoError(t, e.Type(data.DocumentEdit{Text: "a"}))
	require.NoError(t, e.Flush(ctx))
	require.NoError(t, e.Type(data.DocumentEdit{Text: "ab"}))
	require.NoError(t, e.Flush(ctx))

	// snapshots of both writes arrive late, oldest first
	assert.False(t, e.ApplyRemote(data.DocumentEdit{Text: "a"}, writerEpoch.Add(1*time.Millisecond)))
	assert.False(t, e.ApplyRemote(data.DocumentEdit{Text: "ab"}, writerEpoch.Add(2*time.Millisecond)))
	assert.Equal(t, "ab", e.Buffer().Text, "buffer matches the store")

	// someone else's later write still wins
	assert.True(t, e.ApplyRemote(data.DocumentEdit{Text: "theirs"}, writerEpoch.Add(time.Second)))
	assert.Equal(t, "theirs", e.Buffer().Text)
	assert.False(t, e.ApplyRemote(data.DocumentEdit{Text: "ab"}, writerEpoch.Add(2*time.Millisecond)))
	assert.Equal(t, "theirs", e.Buffer().Text)
}

func TestEditor_InitialRevisionBoundsRemotes(t *testing.T) {
	w := &recordingWriter{}
	e := NewEditor(context.Background(), data.DocumentEdit{Text: "current"}, writerEpoch, time.Hour, w.write, nil)

	assert.False(t, e.ApplyRemote(data.DocumentEdit{Text: "older"}, writerEpoch.Add(-time.Second)))
	assert.Equal(t, "current", e.Buffer().Text)
}

func TestEditor_CloseRefusesTypingDuringFinalWrite(t *testing.T) {
	var (
		e       *Editor
		typeErr error
		writes  []string
	)
	e = NewEditor(context.Background(), data.DocumentEdit{}, writerEpoch, time.Hour, func(_ context.Context, edit data.DocumentEdit) (time.Time, error) {
		writes = append(writes, edit.Text)
		if len(writes) == 1 {
			// a keystroke racing the close
			typeErr = e.Type(data.DocumentEdit{Text: "late"})
		}
		return writerEpoch.Add(time.Duration(len(writes)) * time.Millisecond), nil
	}, nil)

	require.NoError(t, e.Type(data.DocumentEdit{Text: "unsaved"}))
	require.NoError(t, e.Close(context.Background()))

	assert.ErrorIs(t, typeErr, ErrEditorClosed, "an edit is either refused or written, never dropped")
	assert.Equal(t, []string{"unsaved"}, writes)
	assert.False(t, e.Pending())
}

func TestEditor_CloseRetriesFailedWrite(t *testing.T) {
	w := &recordingWriter{err: errors.New("offline")}
	e := NewEditor(context.Background(), data.DocumentEdit{}, writerEpoch, time.Hour, w.write, nil)

	require.NoError(t, e.Type(data.DocumentEdit{Text: "draft"}))
	assert.Error(t, e.Close(context.Background()))
	assert.True(t, e.Pending())

	w.mu.Lock()
	w.err = nil
	w.mu.Unlock()
	require.NoError(t, e.Close(context.Background()))
	require.Len(t, w.all(), 1)
	assert.Equal(t, "draft", w.all()[0].Text)
}

func TestEditor_FailedWriteStaysPending(t *testing.T) {
	w := &recordingWriter{err: errors.New("offline")}
	e := NewEditor(context.Background(), data.DocumentEdit{}, writerEpoch, time.Hour, w.write, nil)

	require.NoError(t, e.Type(data.DocumentEdit{Text: "draft"}))
	assert.Error(t, e.Flush(context.Background()))
	assert.True(t, e.Pending())

	w.mu.Lock()
	w.err = nil
	w.mu.Unlock()
	require.NoError(t, e.Flush(context.Background()))
	require.Len(t, w.all(), 1)
	assert.Equal(t, "draft", w.all()[0].Text)
}

func TestEditor_WritesThroughService(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d, err := s.Create(ctx, "alice", "", "go")
	require.NoError(t, err)

	e := NewEditor(ctx, data.DocumentEdit{}, d.UpdatedAt, 10*time.Millisecond, func(ctx context.Context, edit data.DocumentEdit) (time.Time, error) {
		stored, err := s.Edit(ctx, d.ID, edit)
		if err != nil {
			return time.Time{}, err
		}
		return stored.UpdatedAt, nil
	}, nil)
	require.NoError(t, e.Type(data.DocumentEdit{Text: "fmt.Println()"}))
	require.NoError(t, e.Close(ctx))

	got, err := s.OpenSnapshot(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "fmt.Println()", got.Text)
}
