package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBenchmark() *Benchmark {
	return &Benchmark{
		Name: "b",
		Scenarios: map[string]*ScenarioConfig{
			"s": {
				InitialSequences: []string{"main"},
				Sequences: []*SequenceConfig{
					{Name: "main", Steps: []*StepConfig{{ThinkTime: &ThinkTimeStep{Duration: 0}}}},
					{Name: "other", Steps: []*StepConfig{{Stop: &StopStep{}}}},
				},
			},
		},
		Phases: map[string]*PhaseConfig{
			"a": {Scenario: "s", AtOnce: &UsersModel{Users: 1}},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *Benchmark)
		field  string
	}{
		{"negative threads", func(b *Benchmark) { b.Threads = -1 }, "threads"},
		{"bad base url", func(b *Benchmark) { b.HTTP.BaseURL = "localhost" }, "http.baseUrl"},
		{"no scenarios", func(b *Benchmark) { b.Scenarios = nil }, "scenarios"},
		{"no phases", func(b *Benchmark) { b.Phases = nil }, "phases"},
		{"unknown initial", func(b *Benchmark) {
			b.Scenarios["s"].InitialSequences = []string{"nope"}
		}, "scenarios.s.initialSequences[0]"},
		{"no initial", func(b *Benchmark) {
			b.Scenarios["s"].InitialSequences = nil
		}, "scenarios.s.initialSequences"},
		{"duplicate sequence", func(b *Benchmark) {
			b.Scenarios["s"].Sequences[1].Name = "main"
		}, "scenarios.s.sequences[1].name"},
		{"two step kinds", func(b *Benchmark) {
			b.Scenarios["s"].Sequences[0].Steps[0].Stop = &StopStep{}
		}, "scenarios.s.sequences[0].steps[0]"},
		{"unknown next sequence", func(b *Benchmark) {
			b.Scenarios["s"].Sequences[0].Steps = []*StepConfig{{NextSequence: &SequenceRefStep{Sequence: "x"}}}
		}, "scenarios.s.sequences[0].steps[0].nextSequence.sequence"},
		{"undeclared await", func(b *Benchmark) {
			b.Scenarios["s"].Sequences[0].Steps = []*StepConfig{{AwaitVar: &AwaitVarStep{Var: "ghost"}}}
		}, "scenarios.s.sequences[0].steps[0].awaitVar.var"},
		{"bad method", func(b *Benchmark) {
			b.Scenarios["s"].Sequences[0].Steps = []*StepConfig{{HTTPRequest: &HTTPRequestStep{Method: "FETCH", Path: "/"}}}
		}, "scenarios.s.sequences[0].steps[0].httpRequest.method"},
		{"sla error rate", func(b *Benchmark) {
			b.Scenarios["s"].Sequences[0].SLA = &SLAConfig{ErrorRate: 2}
		}, "scenarios.s.sequences[0].sla.errorRate"},
		{"sla percentile", func(b *Benchmark) {
			b.Scenarios["s"].Sequences[0].SLA = &SLAConfig{Percentiles: []PercentileLimit{{Percentile: 101, ResponseTime: 1}}}
		}, "scenarios.s.sequences[0].sla.percentiles[0].percentile"},
		{"unknown scenario", func(b *Benchmark) { b.Phases["a"].Scenario = "z" }, "phases.a.scenario"},
		{"no model", func(b *Benchmark) { b.Phases["a"].AtOnce = nil }, "phases.a"},
		{"two models", func(b *Benchmark) { b.Phases["a"].Always = &UsersModel{Users: 1} }, "phases.a"},
		{"negative users", func(b *Benchmark) { b.Phases["a"].AtOnce.Users = -1 }, "phases.a.atOnce.users"},
		{"ramp without duration", func(b *Benchmark) {
			b.Phases["a"].AtOnce = nil
			b.Phases["a"].RampPerSec = &RampModel{InitialUsersPerSec: 1, TargetUsersPerSec: 5}
		}, "phases.a.rampPerSec.duration"},
		{"negative duration", func(b *Benchmark) { b.Phases["a"].Duration = -1 }, "phases.a.duration"},
		{"max shorter than duration", func(b *Benchmark) {
			b.Phases["a"].Duration = Duration(10)
			maxDur := Duration(5)
			b.Phases["a"].MaxDuration = &maxDur
		}, "phases.a.maxDuration"},
		{"self dependency", func(b *Benchmark) { b.Phases["a"].StartAfter = []string{"a"} }, "phases.a.startAfter[0]"},
		{"unknown dependency", func(b *Benchmark) { b.Phases["a"].StartAfterStrict = []string{"q"} }, "phases.a.startAfterStrict[0]"},
		{"cycle", func(b *Benchmark) {
			b.Phases["b"] = &PhaseConfig{Scenario: "s", AtOnce: &UsersModel{}, StartAfter: []string{"a"}}
			b.Phases["a"].StartAfterStrict = []string{"b"}
		}, "phases"},
	}

	require.NoError(t, validBenchmark().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBenchmark()
			tt.mutate(b)
			err := b.Validate()
			require.Error(t, err)
			var errs *ValidationErrors
			require.ErrorAs(t, err, &errs)
			assert.True(t, errs.Has(tt.field), "expected error on %s, got %v", tt.field, err)
		})
	}
}

func TestValidate_DeclaredByStep(t *testing.T) {
	b := validBenchmark()
	b.Scenarios["s"].Sequences[0].Steps = []*StepConfig{
		{HTTPRequest: &HTTPRequestStep{Method: "get", Path: "/", Extract: []Extraction{{Var: "id", Path: "id"}}}},
		{AwaitVar: &AwaitVarStep{Var: "id"}},
		{SetInt: &SetIntStep{Var: "n", Value: 1}},
		{BreakSequence: &BreakSequenceStep{Var: "n", Value: 1}},
	}
	assert.NoError(t, b.Validate())
}

func TestValidationErrors_Error(t *testing.T) {
	errs := &ValidationErrors{}
	assert.Equal(t, "no validation errors", errs.Error())

	errs.Add("a", "bad")
	assert.Equal(t, "validation error on field 'a': bad", errs.Error())

	errs.Add("", "worse")
	assert.Contains(t, errs.Error(), "2 validation errors:")
	assert.Contains(t, errs.Error(), "  2. validation error: worse")
}
