// Package moderation runs the best-effort content check on group and general
// room messages. Classification happens after the send has committed, on a
// detached goroutine; its outcome reaches the sender only through a callback.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/classroom-chat/internal/metrics"
)

// Verdict is the classifier's opinion on one message.
type Verdict struct {
	IsOffTopic  bool   `json:"is_off_topic"`
	IsViolation bool   `json:"is_violation"`
	Reason      string `json:"reason"`
}

// Flagged reports whether the verdict warrants a warning.
func (v Verdict) Flagged() bool { return v.IsOffTopic || v.IsViolation }

// Classifier is the external moderation model.
type Classifier interface {
	Classify(ctx context.Context, text, topicHint string) (Verdict, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, text, topicHint string) (Verdict, error)

func (f ClassifierFunc) Classify(ctx context.Context, text, topicHint string) (Verdict, error) {
	return f(ctx, text, topicHint)
}

// HTTPClassifier calls a classifier endpoint that accepts
// {"text","topic_hint"} and answers with a Verdict.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

// NewHTTPClassifier returns a classifier posting to url.
func NewHTTPClassifier(url string, client *http.Client) *HTTPClassifier {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPClassifier{url: url, client: client}
}

func (c *HTTPClassifier) Classify(ctx context.Context, text, topicHint string) (Verdict, error) {
	body, err := json.Marshal(map[string]string{"text": text, "topic_hint": topicHint})
	if err != nil {
		return Verdict{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("classifier returned %s", resp.Status)
	}
	var v Verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return Verdict{}, fmt.Errorf("decoding verdict: %w", err)
	}
	return v, nil
}

// Options tunes the gateway.
type Options struct {
	// Timeout bounds one classifier call.
	Timeout time.Duration
	// MaxFailures consecutive failures open the circuit.
	MaxFailures uint32
	// OpenFor is how long the circuit stays open before probing again.
	OpenFor time.Duration
}

// Gateway dispatches classifications off the send path.
type Gateway struct {
	classifier Classifier
	cb         *gobreaker.CircuitBreaker
	timeout    time.Duration
	log        *zap.Logger
	wg         sync.WaitGroup
}

// NewGateway wraps c with a circuit breaker. A nil classifier yields a gateway
// that skips every dispatch.
func NewGateway(c Classifier, opts Options, log *zap.Logger) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	g := &Gateway{classifier: c, timeout: opts.Timeout, log: log}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 1,
		Timeout:     opts.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return g
}

// Dispatch classifies text in the background and calls onVerdict for flagged
// verdicts. It returns immediately; the work outlives ctx's cancellation but
// keeps its values. Classifier errors are logged and dropped.
func (g *Gateway) Dispatch(ctx context.Context, text, topicHint string, onVerdict func(Verdict)) {
	if g == nil || g.classifier == nil {
		metrics.ModerationVerdicts.WithLabelValues("skipped").Inc()
		return
	}

	detached := context.WithoutCancel(ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.ModerationVerdicts.WithLabelValues("error").Inc()
				g.log.Error("classifier panicked", zap.Any("panic", r))
			}
		}()

		cctx, cancel := context.WithTimeout(detached, g.timeout)
		defer cancel()

		res, err := g.cb.Execute(func() (interface{}, error) {
			return g.classifier.Classify(cctx, text, topicHint)
		})
		if err != nil {
			metrics.ModerationVerdicts.WithLabelValues("error").Inc()
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				g.log.Debug("classifier circuit open, skipping", zap.Error(err))
				return
			}
			g.log.Warn("classifier failed", zap.Error(err))
			return
		}

		v := res.(Verdict)
		if !v.Flagged() {
			metrics.ModerationVerdicts.WithLabelValues("clean").Inc()
			return
		}
		metrics.ModerationVerdicts.WithLabelValues("flagged").Inc()
		if onVerdict != nil {
			onVerdict(v)
		}
	}()
}

// Wait blocks until in-flight classifications finish or ctx is done.
func (g *Gateway) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
