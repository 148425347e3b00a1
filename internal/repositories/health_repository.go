package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/foodbuddy/api/internal/domain"
)

const defaultProbeTimeout = 1500 * time.Millisecond

// DependencyProbe describes a dependency check executed during readiness checks.
type DependencyProbe struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

type probeHealthRepository struct {
	probes []DependencyProbe
	now    func() time.Time
}

var _ HealthRepository = (*probeHealthRepository)(nil)

// NewProbeHealthRepository constructs a HealthRepository that evaluates the
// provided probes. The clock is injectable for tests and defaults to time.Now.
func NewProbeHealthRepository(probes []DependencyProbe, clock func() time.Time) (HealthRepository, error) {
	if len(probes) == 0 {
		return nil, errors.New("health repository: at least one dependency probe is required")
	}
	for _, probe := range probes {
		if strings.TrimSpace(probe.Name) == "" {
			return nil, errors.New("health repository: dependency probe missing name")
		}
		if probe.Check == nil {
			return nil, errors.New("health repository: dependency probe " + probe.Name + " missing check function")
		}
	}
	if clock == nil {
		clock = time.Now
	}
	repo := &probeHealthRepository{
		probes: make([]DependencyProbe, len(probes)),
		now:    clock,
	}
	copy(repo.probes, probes)
	return repo, nil
}

func (r *probeHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("health repository: context is required")
	}

	checks := make(map[string]domain.SystemHealthCheck, len(r.probes))
	overall := domain.HealthStatusOK

	for _, probe := range r.probes {
		timeout := probe.Timeout
		if timeout <= 0 {
			timeout = defaultProbeTimeout
		}
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		start := r.now()
		err := probe.Check(probeCtx)
		cancel()
		end := r.now()

		check := domain.SystemHealthCheck{
			Status:    domain.HealthStatusOK,
			Detail:    "ok",
			Latency:   end.Sub(start),
			CheckedAt: end,
		}
		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			check.Status = domain.HealthStatusError
			check.Detail = err.Error()
		default:
			check.Status = domain.HealthStatusDegraded
			check.Detail = err.Error()
		}
		checks[probe.Name] = check

		switch check.Status {
		case domain.HealthStatusError:
			overall = domain.HealthStatusError
		case domain.HealthStatusDegraded:
			if overall == domain.HealthStatusOK {
				overall = domain.HealthStatusDegraded
			}
		}
	}

	return domain.SystemHealthReport{
		Status:      overall,
		Checks:      checks,
		GeneratedAt: r.now(),
	}, nil
}
