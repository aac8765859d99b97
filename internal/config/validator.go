package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/wesleyorama2/loadphase/internal/phase"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Has reports whether any error was recorded for field.
func (e *ValidationErrors) Has(field string) bool {
	for _, err := range e.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

var validMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
	http.MethodPatch, http.MethodHead, http.MethodOptions,
}

// Validate checks the whole benchmark. It returns nil if valid, or a
// *ValidationErrors containing every problem found.
func (b *Benchmark) Validate() error {
	errs := &ValidationErrors{}

	if b.Threads < 0 {
		errs.Add("threads", "cannot be negative")
	}
	if b.StatisticsInterval < 0 {
		errs.Add("statisticsInterval", "cannot be negative")
	}
	validateHTTP(&b.HTTP, errs)

	if len(b.Scenarios) == 0 {
		errs.Add("scenarios", "at least one scenario is required")
	}
	for _, name := range sortedKeys(b.Scenarios) {
		validateScenario(name, b.Scenarios[name], errs)
	}

	if len(b.Phases) == 0 {
		errs.Add("phases", "at least one phase is required")
	}
	for _, name := range sortedKeys(b.Phases) {
		b.validatePhase(name, b.Phases[name], errs)
	}
	if cycle := b.dependencyCycle(); cycle != nil {
		errs.Add("phases", fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")))
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateHTTP(h *HTTPConfig, errs *ValidationErrors) {
	if h.BaseURL != "" {
		u, err := url.Parse(h.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs.Add("http.baseUrl", fmt.Sprintf("invalid URL: %s", h.BaseURL))
		}
	}
	if h.Timeout < 0 {
		errs.Add("http.timeout", "cannot be negative")
	}
	if h.MaxConnsPerHost < 0 {
		errs.Add("http.maxConnsPerHost", "cannot be negative")
	}
}

func validateScenario(name string, s *ScenarioConfig, errs *ValidationErrors) {
	prefix := "scenarios." + name
	if s == nil {
		errs.Add(prefix, "scenario is empty")
		return
	}
	if s.MaxSequences < 0 {
		errs.Add(prefix+".maxSequences", "cannot be negative")
	}
	if len(s.Sequences) == 0 {
		errs.Add(prefix+".sequences", "at least one sequence is required")
	}

	sequences := make(map[string]bool, len(s.Sequences))
	for i, seq := range s.Sequences {
		if seq == nil || seq.Name == "" {
			errs.Add(fmt.Sprintf("%s.sequences[%d].name", prefix, i), "sequence name is required")
			continue
		}
		if sequences[seq.Name] {
			errs.Add(fmt.Sprintf("%s.sequences[%d].name", prefix, i), fmt.Sprintf("duplicate sequence: %s", seq.Name))
		}
		sequences[seq.Name] = true
	}

	if len(s.InitialSequences) == 0 {
		errs.Add(prefix+".initialSequences", "at least one initial sequence is required")
	}
	for i, initial := range s.InitialSequences {
		if !sequences[initial] {
			errs.Add(fmt.Sprintf("%s.initialSequences[%d]", prefix, i), fmt.Sprintf("sequence not found: %s", initial))
		}
	}

	declared := declaredVars(s)
	for i, seq := range s.Sequences {
		if seq == nil {
			continue
		}
		seqPrefix := fmt.Sprintf("%s.sequences[%d]", prefix, i)
		if len(seq.Steps) == 0 {
			errs.Add(seqPrefix+".steps", "at least one step is required")
		}
		for j, step := range seq.Steps {
			validateStep(fmt.Sprintf("%s.steps[%d]", seqPrefix, j), step, sequences, declared, errs)
		}
		if seq.SLA != nil {
			validateSLA(seqPrefix+".sla", seq.SLA, errs)
		}
	}
}

// declaredVars collects every variable the scenario declares or that a
// step writes to.
func declaredVars(s *ScenarioConfig) map[string]bool {
	vars := make(map[string]bool)
	for _, v := range s.IntVars {
		vars[v] = true
	}
	for _, v := range s.ObjectVars {
		vars[v] = true
	}
	for _, seq := range s.Sequences {
		if seq == nil {
			continue
		}
		for _, step := range seq.Steps {
			if step == nil {
				continue
			}
			switch {
			case step.SetInt != nil:
				vars[step.SetInt.Var] = true
			case step.AddToInt != nil:
				vars[step.AddToInt.Var] = true
			case step.SetObject != nil:
				vars[step.SetObject.Var] = true
			case step.HTTPRequest != nil:
				for _, e := range step.HTTPRequest.Extract {
					vars[e.Var] = true
				}
			}
		}
	}
	return vars
}

func validateStep(prefix string, step *StepConfig, sequences, vars map[string]bool, errs *ValidationErrors) {
	if step == nil {
		errs.Add(prefix, "step is empty")
		return
	}
	kinds := step.Kinds()
	if len(kinds) != 1 {
		errs.Add(prefix, fmt.Sprintf("exactly one step kind is required, found %d", len(kinds)))
		return
	}

	requireVar := func(field, name string) {
		if name == "" {
			errs.Add(prefix+field, "variable name is required")
		} else if !vars[name] {
			errs.Add(prefix+field, fmt.Sprintf("variable not declared: %s", name))
		}
	}
	requireSequence := func(field, name string) {
		if !sequences[name] {
			errs.Add(prefix+field, fmt.Sprintf("sequence not found: %s", name))
		}
	}

	switch {
	case step.HTTPRequest != nil:
		h := step.HTTPRequest
		if h.Path == "" {
			errs.Add(prefix+".httpRequest.path", "path is required")
		}
		if h.Method == "" {
			errs.Add(prefix+".httpRequest.method", "method is required")
		} else if !contains(validMethods, strings.ToUpper(h.Method)) {
			errs.Add(prefix+".httpRequest.method", fmt.Sprintf("invalid method: %s", h.Method))
		}
		if h.Timeout < 0 {
			errs.Add(prefix+".httpRequest.timeout", "cannot be negative")
		}
		for k, e := range h.Extract {
			if e.Var == "" {
				errs.Add(fmt.Sprintf("%s.httpRequest.extract[%d].var", prefix, k), "variable name is required")
			}
			if e.Path == "" {
				errs.Add(fmt.Sprintf("%s.httpRequest.extract[%d].path", prefix, k), "extract path cannot be empty")
			}
		}
	case step.ThinkTime != nil:
		if step.ThinkTime.Duration < 0 {
			errs.Add(prefix+".thinkTime.duration", "cannot be negative")
		}
	case step.SetInt != nil:
		requireVar(".setInt.var", step.SetInt.Var)
	case step.AddToInt != nil:
		requireVar(".addToInt.var", step.AddToInt.Var)
	case step.SetObject != nil:
		requireVar(".setObject.var", step.SetObject.Var)
	case step.AwaitVar != nil:
		requireVar(".awaitVar.var", step.AwaitVar.Var)
	case step.NextSequence != nil:
		requireSequence(".nextSequence.sequence", step.NextSequence.Sequence)
	case step.NewSequence != nil:
		requireSequence(".newSequence.sequence", step.NewSequence.Sequence)
	case step.BreakSequence != nil:
		requireVar(".breakSequence.var", step.BreakSequence.Var)
	}
}

func validateSLA(prefix string, sla *SLAConfig, errs *ValidationErrors) {
	if sla.Window < 0 {
		errs.Add(prefix+".window", "cannot be negative")
	}
	if sla.ErrorRate < 0 || sla.ErrorRate > 1 {
		errs.Add(prefix+".errorRate", "must be between 0 and 1")
	}
	if sla.MeanResponseTime < 0 {
		errs.Add(prefix+".meanResponseTime", "cannot be negative")
	}
	for i, p := range sla.Percentiles {
		if p.Percentile <= 0 || p.Percentile > 100 {
			errs.Add(fmt.Sprintf("%s.percentiles[%d].percentile", prefix, i), "must be in (0, 100]")
		}
		if p.ResponseTime <= 0 {
			errs.Add(fmt.Sprintf("%s.percentiles[%d].responseTime", prefix, i), "must be positive")
		}
	}
}

func (b *Benchmark) validatePhase(name string, p *PhaseConfig, errs *ValidationErrors) {
	prefix := "phases." + name
	if p == nil {
		errs.Add(prefix, "phase is empty")
		return
	}

	if p.Scenario == "" {
		errs.Add(prefix+".scenario", "scenario is required")
	} else if _, ok := b.Scenarios[p.Scenario]; !ok {
		errs.Add(prefix+".scenario", fmt.Sprintf("scenario not found: %s", p.Scenario))
	}

	if p.Duration < 0 {
		errs.Add(prefix+".duration", "cannot be negative")
	}
	if p.MaxDuration != nil {
		if *p.MaxDuration < 0 {
			errs.Add(prefix+".maxDuration", "cannot be negative")
		} else if *p.MaxDuration < p.Duration {
			errs.Add(prefix+".maxDuration", "must not be shorter than duration")
		}
	}

	model, err := p.Model()
	if err != nil {
		errs.Add(prefix, err.Error())
	} else if err := model.Validate(p.Duration.Std()); err != nil {
		var ve *phase.ValidationError
		if errors.As(err, &ve) {
			errs.Add(prefix+"."+string(model.Type)+"."+ve.Field, ve.Message)
		} else {
			errs.Add(prefix+"."+string(model.Type), err.Error())
		}
	}

	validateDeps := func(field string, deps []string) {
		for i, dep := range deps {
			switch {
			case dep == name:
				errs.Add(fmt.Sprintf("%s.%s[%d]", prefix, field, i), "phase cannot depend on itself")
			case b.Phases[dep] == nil:
				errs.Add(fmt.Sprintf("%s.%s[%d]", prefix, field, i), fmt.Sprintf("phase not found: %s", dep))
			}
		}
	}
	validateDeps("startAfter", p.StartAfter)
	validateDeps("startAfterStrict", p.StartAfterStrict)
}

// dependencyCycle returns the phases forming a startAfter cycle, or nil.
func (b *Benchmark) dependencyCycle() []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(b.Phases))
	var path []string

	var visit func(name string) []string
	visit = func(name string) []string {
		switch state[name] {
		case visiting:
			for i, n := range path {
				if n == name {
					return append(append([]string(nil), path[i:]...), name)
				}
			}
		case done:
			return nil
		}
		p := b.Phases[name]
		if p == nil {
			return nil
		}
		state[name] = visiting
		path = append(path, name)
		deps := append(append([]string(nil), p.StartAfter...), p.StartAfterStrict...)
		for _, dep := range deps {
			if dep == name {
				continue
			}
			if cycle := visit(dep); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		return nil
	}

	for _, name := range sortedKeys(b.Phases) {
		if cycle := visit(name); cycle != nil {
			return cycle
		}
	}
	return nil
}

// SortedPhaseNames returns the phase names in lexical order.
func (b *Benchmark) SortedPhaseNames() []string {
	return sortedKeys(b.Phases)
}

// SortedScenarioNames returns the scenario names in lexical order.
func (b *Benchmark) SortedScenarioNames() []string {
	return sortedKeys(b.Scenarios)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
