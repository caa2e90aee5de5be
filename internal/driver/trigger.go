package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/reelcast/internal/logger"
)

// ErrQueueFull is returned when the local trigger queue has no room left
var ErrQueueFull = errors.New("trigger queue is full")

// DefaultQueueSize is the capacity of the local trigger queue
const DefaultQueueSize = 1024

// LocalTrigger queues job ids for the in-process worker pool. A job that is
// already queued is not queued twice.
type LocalTrigger struct {
	queue  chan string
	mu     sync.Mutex
	queued map[string]struct{}
}

// NewLocalTrigger creates a queue holding up to size job ids
func NewLocalTrigger(size int) *LocalTrigger {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &LocalTrigger{
		queue:  make(chan string, size),
		queued: make(map[string]struct{}),
	}
}

// Trigger queues the job without waiting for a worker
func (t *LocalTrigger) Trigger(_ context.Context, jobID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.queued[jobID]; ok {
		return nil
	}
	select {
	case t.queue <- jobID:
		t.queued[jobID] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

// Next blocks until a job id is available or ctx is done
func (t *LocalTrigger) Next(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case jobID := <-t.queue:
		t.mu.Lock()
		delete(t.queued, jobID)
		t.mu.Unlock()
		return jobID, true
	}
}

// Len returns the number of queued job ids
func (t *LocalTrigger) Len() int {
	return len(t.queue)
}

// AdvancePath is the internal endpoint that runs one invocation of a job
const AdvancePath = "/api/v1/jobs/%s/advance"

// HTTPTrigger re-invokes the service through its own advance endpoint, so
// every unit of work runs in a fresh request.
type HTTPTrigger struct {
	baseURL string
	token   string
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewHTTPTrigger creates a trigger calling baseURL. timeout bounds one
// invocation of the advance endpoint.
func NewHTTPTrigger(baseURL, token string, timeout time.Duration) *HTTPTrigger {
	return &HTTPTrigger{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
	}
}

// Trigger fires the advance request in the background and returns at once
func (t *HTTPTrigger) Trigger(_ context.Context, jobID string) error {
	if t.baseURL == "" {
		return fmt.Errorf("self trigger has no base url")
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.invoke(jobID); err != nil {
			logger.WarnWithFields("Self trigger failed", map[string]interface{}{
				"job_id": jobID,
				"error":  err.Error(),
			})
		}
	}()
	return nil
}

// Wait blocks until every fired request has returned
func (t *HTTPTrigger) Wait() {
	t.wg.Wait()
}

func (t *HTTPTrigger) invoke(jobID string) error {
	agent := fiber.Post(t.baseURL + fmt.Sprintf(AdvancePath, jobID))
	agent.Timeout(t.timeout)
	agent.Set("Content-Type", "application/json")
	agent.Set("Accept", "application/json")
	if t.token != "" {
		agent.Set("Authorization", "Bearer "+t.token)
	}
	agent.JSON(map[string]string{"job_id": jobID})

	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending request: %w", errs[0])
	}
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("advance returned %d: %s", statusCode, string(body))
	}
	return nil
}
