// Package queue provides a Redis-backed intake for execution run requests,
// so CI jobs and lab tooling can enqueue flows without talking to the HTTP
// API.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	defaultQueue   = "mobiq:run-requests"
	popTimeout     = time.Second
	connectTimeout = 5 * time.Second
	errorBackoff   = time.Second
)

// RunRequest is the wire format of one queued start request.
type RunRequest struct {
	FlowID    string   `json:"flow_id"`
	DeviceIDs []string `json:"device_ids"`
	Requester string   `json:"requester,omitempty"`
}

// StartFunc admits one run request. Admission rejections come back as
// errors; the receiver logs them and keeps consuming.
type StartFunc func(ctx context.Context, flowID string, deviceIDs []string) error

// Receiver consumes run requests with BLPOP. One receiver owns one queue.
type Receiver struct {
	addr     string
	password string
	db       int
	queue    string

	client redis.UniversalClient
	start  StartFunc
	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type Option func(*Receiver)

// WithQueue overrides the queue key.
func WithQueue(queue string) Option {
	return func(r *Receiver) {
		r.queue = queue
	}
}

// WithCredentials sets the Redis password and database.
func WithCredentials(password string, db int) Option {
	return func(r *Receiver) {
		r.password = password
		r.db = db
	}
}

func NewReceiver(addr string, start StartFunc, logger *slog.Logger, opts ...Option) (*Receiver, error) {
	if addr == "" {
		return nil, errors.New("queue receiver requires a redis address")
	}

	receiver := &Receiver{
		addr:   addr,
		queue:  defaultQueue,
		start:  start,
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(receiver)
	}

	receiver.logger = logger.With("module", "queue", "queue", receiver.queue)

	return receiver, nil
}

// Start connects to Redis and begins consuming until Stop or ctx
// cancellation.
func (r *Receiver) Start(ctx context.Context) error {
	r.client = redis.NewClient(&redis.Options{
		Addr:     r.addr,
		Password: r.password,
		DB:       r.db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r.logger.InfoContext(ctx, "Connected to Redis", "addr", r.addr, "db", r.db)

	r.wg.Add(1)

	go r.consume(ctx)

	return nil
}

func (r *Receiver) consume(ctx context.Context) {
	defer r.wg.Done()

	r.logger.InfoContext(ctx, "Starting run-request consumer")

	for {
		select {
		case <-r.stopCh:
			r.logger.InfoContext(ctx, "Run-request consumer stopped")

			return
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Context cancelled, stopping run-request consumer")

			return
		default:
			if err := r.processMessage(ctx); err != nil {
				r.logger.ErrorContext(ctx, "Error processing run request", "error", err)
				time.Sleep(errorBackoff)
			}
		}
	}
}

func (r *Receiver) processMessage(ctx context.Context) error {
	result, err := r.client.BLPop(ctx, popTimeout, r.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("failed to pop run request: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	request, err := decodeRunRequest(result[1])
	if err != nil {
		// Malformed payloads are dropped loudly; requeueing them would loop
		// forever.
		r.logger.ErrorContext(ctx, "Discarding malformed run request", "error", err, "payload", result[1])

		return nil
	}

	r.logger.InfoContext(ctx, "Received run request",
		"flow_id", request.FlowID, "devices", request.DeviceIDs, "requester", request.Requester)

	if err := r.start(ctx, request.FlowID, request.DeviceIDs); err != nil {
		r.logger.ErrorContext(ctx, "Run request rejected",
			"flow_id", request.FlowID, "error", err)
	}

	return nil
}

func decodeRunRequest(payload string) (*RunRequest, error) {
	var request RunRequest
	if err := json.Unmarshal([]byte(payload), &request); err != nil {
		return nil, err
	}

	if request.FlowID == "" {
		return nil, errors.New("run request has no flow_id")
	}

	return &request, nil
}

// Stop drains the consumer and closes the connection.
func (r *Receiver) Stop(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Stopping run-request receiver")

	close(r.stopCh)
	r.wg.Wait()

	if r.client != nil {
		if err := r.client.Close(); err != nil {
			r.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
