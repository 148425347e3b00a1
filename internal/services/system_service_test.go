package services

import (
	"context"
	"testing"
	"time"

	domain "github.com/foodbuddy/api/internal/domain"
)

func TestSystemServiceHealthFillsBuildInfo(t *testing.T) {
	repo := &stubHealthRepository{collectFunc: func(ctx context.Context) (domain.SystemHealthReport, error) {
		return domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
			},
		}, nil
	}}
	started := testClockTime.Add(-90 * time.Minute)
	service, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            testClock,
		Build: BuildInfo{
			Version:     "1.4.0",
			CommitSHA:   "abc123",
			Environment: "test",
			StartedAt:   started,
		},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := service.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("status = %q, want ok", report.Status)
	}
	if report.Version != "1.4.0" || report.CommitSHA != "abc123" || report.Environment != "test" {
		t.Fatalf("build info = %+v", report)
	}
	if report.Uptime != 90*time.Minute {
		t.Fatalf("uptime = %v, want 90m", report.Uptime)
	}
	if !report.GeneratedAt.Equal(testClockTime) {
		t.Fatalf("GeneratedAt = %v", report.GeneratedAt)
	}
}

func TestSystemServiceHealthStatusRollup(t *testing.T) {
	cases := []struct {
		name   string
		checks map[string]domain.SystemHealthCheck
		want   string
	}{
		{"no checks", nil, domain.HealthStatusOK},
		{"all ok", map[string]domain.SystemHealthCheck{
			"firestore": {Status: domain.HealthStatusOK},
			"pubsub":    {Status: domain.HealthStatusOK},
		}, domain.HealthStatusOK},
		{"one degraded", map[string]domain.SystemHealthCheck{
			"firestore": {Status: domain.HealthStatusOK},
			"pubsub":    {Status: domain.HealthStatusDegraded},
		}, domain.HealthStatusDegraded},
		{"error wins", map[string]domain.SystemHealthCheck{
			"firestore": {Status: domain.HealthStatusError},
			"pubsub":    {Status: domain.HealthStatusDegraded},
		}, domain.HealthStatusError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubHealthRepository{collectFunc: func(ctx context.Context) (domain.SystemHealthReport, error) {
				return domain.SystemHealthReport{Checks: tc.checks}, nil
			}}
			service, err := NewSystemService(SystemServiceDeps{HealthRepository: repo, Clock: testClock})
			if err != nil {
				t.Fatalf("NewSystemService: %v", err)
			}

			report, err := service.Health(context.Background())
			if err != nil {
				t.Fatalf("Health: %v", err)
			}
			if report.Status != tc.want {
				t.Fatalf("status = %q, want %q", report.Status, tc.want)
			}
		})
	}
}

func TestSystemServiceRequiresHealthRepository(t *testing.T) {
	if _, err := NewSystemService(SystemServiceDeps{Clock: testClock}); err == nil {
		t.Fatal("expected constructor error with no health repository")
	}
}
