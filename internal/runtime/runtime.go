package runtime

import (
	"context"
	"time"

	"github.com/vinodismyname/biofarmaka/config"
	"golang.org/x/sync/semaphore"
)

// Limits captures the concurrency and query guardrails configured for the server.
type Limits struct {
	// Concurrency caps
	MaxConcurrentRequests int
	MaxConcurrentLoads    int

	// Row bounds
	PreviewRowLimit int
	MaxPageSize     int
	TopN            int

	// Timeouts
	OperationTimeout      time.Duration
	AcquireRequestTimeout time.Duration
}

// NewLimits initializes Limits with sensible fallbacks when values are unset.
func NewLimits(maxConcurrentRequests, maxConcurrentLoads int) Limits {
	if maxConcurrentRequests <= 0 {
		maxConcurrentRequests = config.DefaultMaxConcurrentRequests
	}
	if maxConcurrentLoads <= 0 {
		maxConcurrentLoads = config.DefaultMaxConcurrentLoads
	}

	return Limits{
		MaxConcurrentRequests: maxConcurrentRequests,
		MaxConcurrentLoads:    maxConcurrentLoads,
		PreviewRowLimit:       config.DefaultPreviewRowLimit,
		MaxPageSize:           config.DefaultMaxPageSize,
		TopN:                  config.DefaultTopN,
		OperationTimeout:      config.DefaultOperationTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
	}
}

// Controller coordinates runtime semaphores for request and load guardrails.
type Controller struct {
	limits           Limits
	requestSemaphore *semaphore.Weighted
	loadSemaphore    *semaphore.Weighted
}

// NewController constructs a Controller backed by weighted semaphores.
func NewController(limits Limits) *Controller {
	return &Controller{
		limits:           limits,
		requestSemaphore: semaphore.NewWeighted(int64(limits.MaxConcurrentRequests)),
		loadSemaphore:    semaphore.NewWeighted(int64(limits.MaxConcurrentLoads)),
	}
}

// AcquireRequest reserves capacity for an incoming request.
func (c *Controller) AcquireRequest(ctx context.Context) error {
	return c.requestSemaphore.Acquire(ctx, 1)
}

// ReleaseRequest frees previously-acquired request capacity.
func (c *Controller) ReleaseRequest() {
	c.requestSemaphore.Release(1)
}

// AcquireLoad reserves a source load slot.
func (c *Controller) AcquireLoad(ctx context.Context) error {
	return c.loadSemaphore.Acquire(ctx, 1)
}

// ReleaseLoad frees a source load slot.
func (c *Controller) ReleaseLoad() {
	c.loadSemaphore.Release(1)
}

// LimitsSnapshot exposes the configured guardrails for telemetry and discovery.
func (c *Controller) LimitsSnapshot() Limits {
	return c.limits
}
