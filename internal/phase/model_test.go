package phase

import (
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestConstantPerSecRequired(t *testing.T) {
	m := &ConstantPerSec{UsersPerSec: 100}
	tests := []struct {
		delta int64
		want  int64
	}{
		{0, 0},
		{9, 0},
		{10, 1},
		{1000, 100},
		{2500, 250},
	}
	for _, tt := range tests {
		if got := m.Required(tt.delta); got != tt.want {
			t.Errorf("Required(%d) = %d, want %d", tt.delta, got, tt.want)
		}
	}
}

func TestConstantPerSecNextDeltaIsNextBoundary(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := &ConstantPerSec{UsersPerSec: rapid.IntRange(1, 100_000).Draw(t, "ups")}
		started := rapid.Int64Range(0, 1_000_000).Draw(t, "started")

		next := m.NextDelta(started)
		if got := m.Required(next); got < started+1 {
			t.Fatalf("Required(NextDelta(%d)=%d) = %d, want >= %d", started, next, got, started+1)
		}
		if next > 0 {
			if got := m.Required(next - 1); got > started {
				t.Fatalf("Required(%d) = %d, next boundary is too late", next-1, got)
			}
		}
	})
}

func TestRampPerSecRequired(t *testing.T) {
	m := &RampPerSec{InitialUsersPerSec: 0, TargetUsersPerSec: 1000, Duration: 10 * time.Second}
	tests := []struct {
		delta int64
		want  int64
	}{
		{0, 0},
		{1, 0},
		{1000, 0},
		{5000, 0},
		{10000, 1},
	}
	for _, tt := range tests {
		if got := m.Required(tt.delta); got != tt.want {
			t.Errorf("Required(%d) = %d, want %d", tt.delta, got, tt.want)
		}
	}

	m = &RampPerSec{InitialUsersPerSec: 100, TargetUsersPerSec: 100, Duration: time.Second}
	if got := m.Required(1000); got != 100 {
		t.Errorf("flat ramp Required(1000) = %d, want 100", got)
	}

	m = &RampPerSec{InitialUsersPerSec: 1000, TargetUsersPerSec: 0, Duration: time.Second}
	for _, tt := range []struct{ delta, want int64 }{{0, 0}, {500, 499}, {1000, 999}} {
		if got := m.Required(tt.delta); got != tt.want {
			t.Errorf("ramp-down Required(%d) = %d, want %d", tt.delta, got, tt.want)
		}
	}
}

func TestRateModelsAreMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.IntRange(0, 5000).Draw(t, "initial")
		target := rapid.IntRange(0, 5000).Draw(t, "target")
		if initial == 0 && target == 0 {
			target = 1
		}
		duration := time.Duration(rapid.Int64Range(1, 3_600_000).Draw(t, "durationMs")) * time.Millisecond
		ramp := &RampPerSec{InitialUsersPerSec: initial, TargetUsersPerSec: target, Duration: duration}
		constant := &ConstantPerSec{UsersPerSec: rapid.IntRange(1, 5000).Draw(t, "ups")}

		deltas := rapid.SliceOfN(rapid.Int64Range(0, 3_600_000), 1, 50).Draw(t, "deltas")
		sortInt64(deltas)

		var rampStarted, constStarted, prevRamp, prevConst int64
		for _, d := range deltas {
			r := ramp.Required(d)
			c := constant.Required(d)
			if r < prevRamp {
				t.Fatalf("ramp Required(%d) = %d < previous %d", d, r, prevRamp)
			}
			if c < prevConst {
				t.Fatalf("constant Required(%d) = %d < previous %d", d, c, prevConst)
			}
			if admit := r - rampStarted; admit > 0 {
				rampStarted += admit
			}
			if admit := c - constStarted; admit > 0 {
				constStarted += admit
			}
			if rampStarted < prevRamp || constStarted < prevConst {
				t.Fatalf("started users decreased")
			}
			prevRamp, prevConst = r, c
		}
	})
}

func sortInt64(s []int64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func TestModelConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       ModelConfig
		duration  time.Duration
		wantField string
	}{
		{"missing type", ModelConfig{}, 0, "type"},
		{"unknown type", ModelConfig{Type: "burst"}, 0, "type"},
		{"atOnce ok", ModelConfig{Type: TypeAtOnce, Users: 10}, 0, ""},
		{"always negative", ModelConfig{Type: TypeAlways, Users: -1}, 0, "users"},
		{"sequentially zero", ModelConfig{Type: TypeSequentially}, 0, "repeats"},
		{"ramp no duration", ModelConfig{Type: TypeRampPerSec, TargetUsersPerSec: 5}, 0, "duration"},
		{"ramp zero rates", ModelConfig{Type: TypeRampPerSec}, time.Second, "usersPerSec"},
		{"ramp ok", ModelConfig{Type: TypeRampPerSec, InitialUsersPerSec: 1, TargetUsersPerSec: 5}, time.Second, ""},
		{"constant zero", ModelConfig{Type: TypeConstantPerSec}, time.Second, "usersPerSec"},
		{"negative max sessions", ModelConfig{Type: TypeConstantPerSec, UsersPerSec: 1, MaxSessions: -2}, 0, "maxSessions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(tt.duration)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestNewModelTypes(t *testing.T) {
	tests := []struct {
		cfg  ModelConfig
		want Type
	}{
		{ModelConfig{Type: TypeAtOnce, Users: 1}, TypeAtOnce},
		{ModelConfig{Type: TypeAlways, Users: 1}, TypeAlways},
		{ModelConfig{Type: TypeSequentially, Repeats: 1}, TypeSequentially},
		{ModelConfig{Type: TypeRampPerSec, TargetUsersPerSec: 1}, TypeRampPerSec},
		{ModelConfig{Type: TypeConstantPerSec, UsersPerSec: 1}, TypeConstantPerSec},
	}
	for _, tt := range tests {
		m, err := NewModel(tt.cfg, time.Second)
		if err != nil {
			t.Fatalf("NewModel(%v) error = %v", tt.cfg.Type, err)
		}
		if m.Type() != tt.want {
			t.Errorf("Type() = %v, want %v", m.Type(), tt.want)
		}
	}
}

func TestStatusOrdering(t *testing.T) {
	order := []Status{StatusNotStarted, StatusRunning, StatusFinished, StatusTerminating, StatusTerminated}
	names := []string{"NOT_STARTED", "RUNNING", "FINISHED", "TERMINATING", "TERMINATED"}
	for i, s := range order {
		if s.String() != names[i] {
			t.Errorf("String() = %q, want %q", s.String(), names[i])
		}
		if got, want := s.IsFinished(), i >= 2; got != want {
			t.Errorf("%v.IsFinished() = %v, want %v", s, got, want)
		}
	}
	if Status(42).String() != "UNKNOWN" {
		t.Errorf("unexpected name for invalid status")
	}
}
