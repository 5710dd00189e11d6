// Package collab replicates shared editable documents (the code sandbox)
// between the holders of a share link, last writer wins.
package collab

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/classroom-chat/internal/data"
	"github.com/PaulBabatuyi/classroom-chat/internal/feed"
	"github.com/PaulBabatuyi/classroom-chat/internal/metrics"
	"github.com/PaulBabatuyi/classroom-chat/internal/tracing"
)

// Service manages shared documents.
type Service struct {
	store  data.Store
	log    *zap.Logger
	tracer trace.Tracer

	// Debounce is the keystroke window editors are told to use.
	Debounce time.Duration
}

// NewService returns a document service on store.
func NewService(store data.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log, tracer: tracing.Tracer("collab"), Debounce: DefaultDebounce}
}

// Create stores a new document owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID, text, language string) (*data.Document, error) {
	d, err := s.store.InsertDocument(ctx, &data.Document{OwnerID: ownerID, Text: text, Language: language})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return d, nil
}

// OpenSnapshot reads the document once (view mode).
func (s *Service) OpenSnapshot(ctx context.Context, id string) (*data.Document, error) {
	d, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return d, nil
}

// OpenLive streams the document: its current state, then every overwrite.
// The stream ends with data.ErrNotFound if the document does not exist.
func (s *Service) OpenLive(ctx context.Context, id string) <-chan feed.Snapshot[*data.Document] {
	return feed.Watch(ctx, s.store.Notifier(), []string{data.DocumentTopic(id)}, func(ctx context.Context) (*data.Document, error) {
		return s.store.GetDocument(ctx, id)
	})
}

// Edit overwrites the document with the editor's buffer.
func (s *Service) Edit(ctx context.Context, id string, e data.DocumentEdit) (*data.Document, error) {
	ctx, span := s.tracer.Start(ctx, "collab.Edit", trace.WithAttributes(
		attribute.String("document.id", id),
		attribute.Int("document.length", len(e.Text)),
	))
	defer span.End()

	d, err := s.store.UpdateDocument(ctx, id, e)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("edit document: %w", err)
	}
	metrics.DocumentWrites.Inc()
	return d, nil
}

// Fork copies the document's current state into a new document owned by
// forkerID. The copy is independent of the original from then on.
func (s *Service) Fork(ctx context.Context, forkerID, id string) (*data.Document, error) {
	src, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fork document: %w", err)
	}
	d, err := s.store.InsertDocument(ctx, &data.Document{
		OwnerID:   forkerID,
		Text:      src.Text,
		Language:  src.Language,
		LastInput: src.LastInput,
	})
	if err != nil {
		return nil, fmt.Errorf("fork document: %w", err)
	}
	s.log.Info("document forked", zap.String("from", id), zap.String("to", d.ID), zap.String("owner_id", forkerID))
	return d, nil
}
