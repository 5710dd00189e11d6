package data

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

var (
	// ErrNotFound means the document does not exist (or vanished).
	ErrNotFound = errors.New("not found")
	// ErrRoomUnavailable means a send raced a delete of its room.
	ErrRoomUnavailable = errors.New("room no longer exists")
	// ErrNotMember means the sender is not a participant of the group.
	ErrNotMember = errors.New("not a participant")
	// ErrTransient marks store failures that are worth one retry.
	ErrTransient = errors.New("transient store error")
)

// transientError keeps the driver error visible while matching ErrTransient.
type transientError struct{ err error }

func (e *transientError) Error() string { return "transient store error: " + e.err.Error() }
func (e *transientError) Unwrap() []error {
	return []error{ErrTransient, e.err}
}

// classify maps driver errors onto the store's error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return &transientError{err: err}
	}
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && labeled.HasErrorLabel("TransientTransactionError") {
		return &transientError{err: err}
	}
	return err
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
