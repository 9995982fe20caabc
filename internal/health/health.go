// Package health runs readiness probes against the record store, the field
// cipher and the managed secret store, and serves the results over HTTP.
package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Status is the state of one probe or of the whole service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// DefaultTimeout bounds a probe registered without its own timeout.
const DefaultTimeout = 30 * time.Second

// ErrUnknownCheck is returned by Checker.Run for a name that was never
// registered.
var ErrUnknownCheck = errors.New("unknown health check")

// ProbeFunc reports the state of one dependency.
type ProbeFunc func(context.Context) (Status, error)

// Check is a named probe. A failing critical check makes the service unhealthy;
// a failing non-critical one only degrades it.
type Check struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Critical    bool          `json:"critical"`
	Timeout     time.Duration `json:"timeout"`
	Probe       ProbeFunc     `json:"-"`
}

// Result is the outcome of running one Check.
type Result struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Critical  bool          `json:"critical"`
	Duration  time.Duration `json:"duration"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Summary counts results by status.
type Summary struct {
	Total          int `json:"total"`
	Healthy        int `json:"healthy"`
	Degraded       int `json:"degraded"`
	Unhealthy      int `json:"unhealthy"`
	Unknown        int `json:"unknown"`
	CriticalFailed int `json:"critical_failed"`
}

// Report is the outcome of running every registered Check.
type Report struct {
	Service   string             `json:"service"`
	Version   string             `json:"version"`
	Status    Status             `json:"status"`
	CheckedAt time.Time          `json:"checked_at"`
	Duration  time.Duration      `json:"duration"`
	Results   map[string]*Result `json:"results"`
	Summary   Summary            `json:"summary"`
}

// Ready reports whether every critical check passed.
func (r *Report) Ready() bool {
	for _, res := range r.Results {
		if res.Critical && res.Status != StatusHealthy {
			return false
		}
	}
	return true
}

// Checker holds the registered checks. It is safe for concurrent use.
type Checker struct {
	service string
	version string
	now     func() time.Time

	mu     sync.RWMutex
	checks map[string]*Check
}

// NewChecker returns an empty Checker reporting as service at version.
func NewChecker(service, version string) *Checker {
	return &Checker{
		service: service,
		version: version,
		now:     time.Now,
		checks:  make(map[string]*Check),
	}
}

// Register adds check, replacing any check with the same name.
func (c *Checker) Register(check *Check) error {
	switch {
	case check == nil:
		return errors.New("health check is nil")
	case check.Name == "":
		return errors.New("health check has no name")
	case check.Probe == nil:
		return fmt.Errorf("health check %q has no probe", check.Name)
	}
	if check.Timeout <= 0 {
		check.Timeout = DefaultTimeout
	}

	c.mu.Lock()
	c.checks[check.Name] = check
	c.mu.Unlock()
	return nil
}

// Names lists the registered checks.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	return names
}

// Run executes the named check.
func (c *Checker) Run(ctx context.Context, name string) (*Result, error) {
	c.mu.RLock()
	check, ok := c.checks[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCheck, name)
	}
	return c.run(ctx, check), nil
}

// RunAll executes every check concurrently and folds the results into a Report.
// With no checks registered the status is unknown.
func (c *Checker) RunAll(ctx context.Context) *Report {
	start := c.now()

	c.mu.RLock()
	checks := make([]*Check, 0, len(c.checks))
	for _, check := range c.checks {
		checks = append(checks, check)
	}
	c.mu.RUnlock()

	results := make([]*Result, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check *Check) {
			defer wg.Done()
			results[i] = c.run(ctx, check)
		}(i, check)
	}
	wg.Wait()

	report := &Report{
		Service:   c.service,
		Version:   c.version,
		CheckedAt: start,
		Results:   make(map[string]*Result, len(results)),
	}
	for _, res := range results {
		report.Results[res.Name] = res
		report.Summary.add(res)
	}
	report.Status = report.Summary.overall()
	report.Duration = c.now().Sub(start)
	return report
}

func (c *Checker) run(ctx context.Context, check *Check) *Result {
	ctx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	start := c.now()
	status, err := check.Probe(ctx)
	res := &Result{
		Name:      check.Name,
		Status:    status,
		Critical:  check.Critical,
		CheckedAt: start,
		Duration:  c.now().Sub(start),
	}
	if err != nil {
		res.Error = err.Error()
		if status == StatusHealthy || status == "" {
			res.Status = StatusUnhealthy
		}
	}
	return res
}

func (s *Summary) add(res *Result) {
	s.Total++
	switch res.Status {
	case StatusHealthy:
		s.Healthy++
		return
	case StatusDegraded:
		s.Degraded++
		return
	case StatusUnhealthy:
		s.Unhealthy++
	default:
		s.Unknown++
	}
	if res.Critical {
		s.CriticalFailed++
	}
}

func (s Summary) overall() Status {
	switch {
	case s.Total == 0:
		return StatusUnknown
	case s.CriticalFailed > 0:
		return StatusUnhealthy
	case s.Unhealthy > 0 || s.Degraded > 0 || s.Unknown > 0:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}
