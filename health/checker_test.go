package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatus_String(t *testing.T) {
	for s, want := range map[Status]string{
		StatusHealthy:   "healthy",
		StatusDegraded:  "degraded",
		StatusUnhealthy: "unhealthy",
		Status(9):       "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestResultConstructors(t *testing.T) {
	err := errors.New("down")

	if r := Healthy("ok"); r.Status != StatusHealthy || r.Message != "ok" || r.Timestamp.IsZero() {
		t.Errorf("Healthy() = %+v", r)
	}
	if r := Degraded("slow"); r.Status != StatusDegraded || r.Message != "slow" {
		t.Errorf("Degraded() = %+v", r)
	}
	if r := Unhealthy("dead", err); r.Status != StatusUnhealthy || r.Error != err {
		t.Errorf("Unhealthy() = %+v", r)
	}

	r := Healthy("ok").WithDetails(map[string]any{"k": 1})
	if r.Details["k"] != 1 {
		t.Errorf("WithDetails() = %+v", r.Details)
	}
}

func TestCheckerFunc(t *testing.T) {
	c := NewCheckerFunc("probe", func(context.Context) Result { return Degraded("meh") })

	if c.Name() != "probe" {
		t.Errorf("Name() = %q", c.Name())
	}
	if r := c.Check(context.Background()); r.Status != StatusDegraded {
		t.Errorf("Check() = %+v", r)
	}
}
