package scanning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultMaxAttempts is the attempt number at which polling gives up
	DefaultMaxAttempts = 5
	// DefaultInitialDelay is the wait between submission and the first poll
	DefaultInitialDelay = 5 * time.Second
	// DefaultBackoffUnit scales BackoffDelay
	DefaultBackoffUnit = time.Second
	// StatusCompleted is the status reported by a finished document
	StatusCompleted = "completed"
)

// PollState is the terminal state of a polling run
type PollState string

const (
	PollCompleted PollState = "completed"
	PollExhausted PollState = "exhausted"
)

// PollResult is the outcome of polling one document
type PollResult struct {
	DocumentID string          `json:"document_id"`
	State      PollState       `json:"state"`
	Status     string          `json:"status"`
	Polls      int             `json:"polls"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// BackoffDelay returns (2^attempt - 1) units
func BackoffDelay(attempt int, unit time.Duration) time.Duration {
	return time.Duration((1<<attempt)-1) * unit
}

// Poller submits documents to a DocumentAPI and polls them until they complete
type Poller struct {
	api   DocumentAPI
	sleep SleepFunc

	MaxAttempts  int
	InitialDelay time.Duration
	BackoffUnit  time.Duration
}

// NewPoller creates a Poller with the default retry budget
func NewPoller(api DocumentAPI) *Poller {
	return NewPollerWithSleep(api, sleepContext)
}

// NewPollerWithSleep creates a Poller with a custom sleep function for testing
func NewPollerWithSleep(api DocumentAPI, sleep SleepFunc) *Poller {
	return &Poller{
		api:          api,
		sleep:        sleep,
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		BackoffUnit:  DefaultBackoffUnit,
	}
}

// Process submits the document and polls it to a terminal state
func (p *Poller) Process(ctx context.Context, data []byte, filename string) (*PollResult, error) {
	documentID, err := p.api.Submit(ctx, data, filename)
	if err != nil {
		return nil, err
	}
	slog.Info("Document submitted", "document_id", documentID, "filename", filename)

	return p.Poll(ctx, documentID)
}

// Poll waits for the document to complete. Running out of attempts is
// reported as PollExhausted, not as an error.
func (p *Poller) Poll(ctx context.Context, documentID string) (*PollResult, error) {
	if err := p.sleep(ctx, p.InitialDelay); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		status, err := p.api.Status(ctx, documentID)
		if err != nil {
			return nil, fmt.Errorf("polling document %s: %w", documentID, err)
		}

		result := &PollResult{
			DocumentID: documentID,
			Status:     status.Status,
			Polls:      attempt + 1,
			Body:       status.Body,
		}

		if status.Status == StatusCompleted {
			result.State = PollCompleted
			return result, nil
		}

		delay := BackoffDelay(attempt, p.BackoffUnit)
		slog.Info("Document not ready", "document_id", documentID, "status", status.Status, "retry_in", delay)

		if attempt >= p.MaxAttempts {
			slog.Warn("Retries exceeded", "document_id", documentID, "polls", result.Polls)
			result.State = PollExhausted
			return result, nil
		}

		if err := p.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
