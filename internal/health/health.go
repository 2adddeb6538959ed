// Package health provides a registry of named subsystem health checkers.
package health

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"
)

// Status represents the health of a single subsystem.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker is a function that checks the health of a subsystem.
type Checker func(ctx context.Context) Status

// Registry holds named health checkers and runs them on demand.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
}

type namedChecker struct {
	name  string
	check Checker
}

// NewRegistry creates a new health check registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named health checker.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, namedChecker{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs all registered checkers and returns the aggregate health
// status plus individual subsystem results.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(checkers))

	for i, nc := range checkers {
		statuses[i] = nc.check(ctx)
		if !statuses[i].Healthy {
			healthy = false
		}
	}

	return healthy, statuses
}

// DatabaseChecker returns a checker that pings the given database.
func DatabaseChecker(name string, db *sql.DB) Checker {
	return func(ctx context.Context) Status {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return Status{Name: name, Healthy: false, Detail: err.Error()}
		}
		return Status{Name: name, Healthy: true}
	}
}

// EndpointChecker returns a checker that probes an HTTP endpoint with a GET
// request. Any response counts as reachable; only transport errors mark the
// subsystem unhealthy.
func EndpointChecker(name, url string) Checker {
	client := &http.Client{Timeout: 3 * time.Second}
	return func(ctx context.Context) Status {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Status{Name: name, Healthy: false, Detail: err.Error()}
		}
		resp, err := client.Do(req)
		if err != nil {
			return Status{Name: name, Healthy: false, Detail: err.Error()}
		}
		resp.Body.Close()
		return Status{Name: name, Healthy: true}
	}
}
