package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	v1 "github.com/PaulBabatuyi/classroom-chat/api/chat/v1"
	"github.com/PaulBabatuyi/classroom-chat/internal/collab"
	"github.com/PaulBabatuyi/classroom-chat/internal/data"
)

// CreateDocument starts a shared document and returns it with its share link.
func (s *Session) CreateDocument(ctx context.Context, text, language string) (*v1.Document, string, error) {
	res, err := s.api.CreateDocument(ctx, &v1.CreateDocumentRequest{Text: text, Language: language})
	if err != nil {
		return nil, "", err
	}
	return res.Document, res.ShareLink, nil
}

// Snapshot reads a document once (view mode).
func (s *Session) Snapshot(ctx context.Context, docID string) (*v1.Document, error) {
	res, err := s.api.GetDocument(ctx, &v1.GetDocumentRequest{DocumentID: docID})
	if err != nil {
		return nil, err
	}
	return res.Document, nil
}

// Fork copies a document into a new one owned by the caller.
func (s *Session) Fork(ctx context.Context, docID string) (*v1.Document, string, error) {
	res, err := s.api.ForkDocument(ctx, &v1.ForkDocumentRequest{DocumentID: docID})
	if err != nil {
		return nil, "", err
	}
	return res.Document, res.ShareLink, nil
}

// LiveDocument is a document opened in edit mode. Local edits are written
// through a debounce window; remote writes replace the local buffer.
type LiveDocument struct {
	ID string

	editor *collab.Editor
	cancel context.CancelFunc
	done   chan struct{}
	log    *zap.Logger

	mu  sync.Mutex
	err error
}

// OpenLive opens docID in edit mode. onRemote, if set, is called for every
// remote write that replaced the local buffer. The document must be closed.
func (s *Session) OpenLive(ctx context.Context, docID string, onRemote func(*v1.Document)) (*LiveDocument, error) {
	liveCtx, cancel := context.WithCancel(ctx)
	stream, err := s.api.OpenDocument(liveCtx, &v1.OpenDocumentRequest{DocumentID: docID})
	if err != nil {
		cancel()
		return nil, err
	}
	first, err := stream.Recv()
	if err != nil {
		cancel()
		return nil, err
	}

	d := &LiveDocument{ID: docID, cancel: cancel, done: make(chan struct{}), log: s.log}
	d.editor = collab.NewEditor(liveCtx, toEdit(first.Document), revisionAt(first.Document), s.Debounce(),
		func(ctx context.Context, e data.DocumentEdit) (time.Time, error) {
			res, err := s.api.EditDocument(ctx, &v1.EditDocumentRequest{
				DocumentID: docID,
				Text:       e.Text,
				Language:   e.Language,
				LastInput:  e.LastInput,
			})
			if err != nil {
				return time.Time{}, err
			}
			return revisionAt(res.Document), nil
		},
		func(err error) {
			s.log.Warn("document write failed, kept pending", zap.String("document_id", docID), zap.Error(err))
		},
	)

	go func() {
		defer close(d.done)
		for {
			res, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) && liveCtx.Err() == nil {
					d.setErr(err)
				}
				return
			}
			if d.editor.ApplyRemote(toEdit(res.Document), revisionAt(res.Document)) && onRemote != nil {
				onRemote(res.Document)
			}
		}
	}()
	return d, nil
}

// revisionAt orders a document's revisions; zero when unknown.
func revisionAt(doc *v1.Document) time.Time {
	if doc == nil {
		return time.Time{}
	}
	return doc.UpdatedAt
}

func toEdit(doc *v1.Document) data.DocumentEdit {
	if doc == nil {
		return data.DocumentEdit{}
	}
	return data.DocumentEdit{Text: doc.Text, Language: doc.Language, LastInput: doc.LastInput}
}

// Type replaces the local text; it is written after the debounce window.
func (d *LiveDocument) Type(text string) error {
	e := d.editor.Buffer()
	e.Text = text
	return d.editor.Type(e)
}

// Edit replaces the whole local buffer.
func (d *LiveDocument) Edit(text, language, lastInput string) error {
	return d.editor.Type(data.DocumentEdit{Text: text, Language: language, LastInput: lastInput})
}

// Text returns the local buffer's text.
func (d *LiveDocument) Text() string { return d.editor.Buffer().Text }

// Language returns the local buffer's language.
func (d *LiveDocument) Language() string { return d.editor.Buffer().Language }

// Flush writes pending local edits now.
func (d *LiveDocument) Flush(ctx context.Context) error { return d.editor.Flush(ctx) }

// Err reports why the live stream stopped, if it failed.
func (d *LiveDocument) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *LiveDocument) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
	d.log.Warn("live document stream ended", zap.String("document_id", d.ID), zap.Error(err))
}

// Close flushes a pending edit and unsubscribes.
func (d *LiveDocument) Close(ctx context.Context) error {
	err := d.editor.Close(ctx)
	d.cancel()
	<-d.done
	return err
}
