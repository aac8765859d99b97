package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wesleyorama2/loadphase/internal/config"
	lphttp "github.com/wesleyorama2/loadphase/internal/http"
	"github.com/wesleyorama2/loadphase/internal/metrics"
	"github.com/wesleyorama2/loadphase/internal/session"
	"github.com/wesleyorama2/loadphase/pkg/jsonpath"
	"github.com/wesleyorama2/loadphase/pkg/jsonschema"
)

// Env holds what steps share across sessions.
type Env struct {
	// Context bounds in-flight requests; canceling it aborts them
	Context     context.Context
	Client      *lphttp.Client
	Instruments *metrics.Instruments
	Logger      zerolog.Logger
}

// Builder turns scenario configuration into session scenarios.
type Builder struct {
	env  *Env
	keys int
}

// NewBuilder creates a builder whose steps use env.
func NewBuilder(env *Env) *Builder {
	return &Builder{env: env}
}

// Scenario builds the named scenario.
func (b *Builder) Scenario(name string, cfg *config.ScenarioConfig) (*session.Scenario, error) {
	sequences := make([]*session.Sequence, 0, len(cfg.Sequences))
	for _, seqCfg := range cfg.Sequences {
		steps, err := b.Steps(seqCfg.Steps)
		if err != nil {
			return nil, fmt.Errorf("scenario %s, sequence %s: %w", name, seqCfg.Name, err)
		}
		sequences = append(sequences, &session.Sequence{Name: seqCfg.Name, Steps: steps})
	}

	sc, err := session.NewScenario(name, sequences, cfg.InitialSequences)
	if err != nil {
		return nil, err
	}
	sc.IntVars = cfg.IntVars
	sc.ObjectVars = cfg.ObjectVars
	if cfg.MaxSequences > 0 {
		sc.MaxSequences = cfg.MaxSequences
	}
	return sc, nil
}

// Steps builds a step list. Sync requests expand to two steps.
func (b *Builder) Steps(cfgs []*config.StepConfig) ([]session.Step, error) {
	var steps []session.Step
	for i, cfg := range cfgs {
		built, err := b.Step(cfg)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, built...)
	}
	return steps, nil
}

// Step builds the steps for one configured step.
func (b *Builder) Step(cfg *config.StepConfig) ([]session.Step, error) {
	if kinds := cfg.Kinds(); len(kinds) != 1 {
		return nil, fmt.Errorf("exactly one step kind is required, found %d", len(kinds))
	}

	switch {
	case cfg.HTTPRequest != nil:
		return b.httpRequest(cfg.HTTPRequest)
	case cfg.ThinkTime != nil:
		return one(&ThinkTime{Duration: cfg.ThinkTime.Duration.Std(), key: b.key("think")})
	case cfg.SetInt != nil:
		return one(&SetInt{Var: cfg.SetInt.Var, Value: cfg.SetInt.Value})
	case cfg.AddToInt != nil:
		return one(&AddToInt{Var: cfg.AddToInt.Var, Value: cfg.AddToInt.Value})
	case cfg.SetObject != nil:
		return one(&SetObject{Var: cfg.SetObject.Var, Value: ParseTemplate(cfg.SetObject.Value)})
	case cfg.AwaitVar != nil:
		return one(&AwaitVar{Var: cfg.AwaitVar.Var})
	case cfg.NextSequence != nil:
		return one(&NextSequence{Sequence: cfg.NextSequence.Sequence})
	case cfg.NewSequence != nil:
		return one(&NewSequence{Sequence: cfg.NewSequence.Sequence})
	case cfg.BreakSequence != nil:
		return one(&BreakSequence{Var: cfg.BreakSequence.Var, Value: cfg.BreakSequence.Value})
	default:
		return one(&Stop{})
	}
}

func one(step session.Step) ([]session.Step, error) {
	return []session.Step{step}, nil
}

func (b *Builder) key(kind string) string {
	b.keys++
	return fmt.Sprintf("steps.%s.%d", kind, b.keys)
}

func (b *Builder) httpRequest(cfg *config.HTTPRequestStep) ([]session.Step, error) {
	if b.env == nil || b.env.Client == nil {
		return nil, fmt.Errorf("httpRequest: no HTTP client configured")
	}
	st := &HTTPRequest{
		Method:  strings.ToUpper(cfg.Method),
		Path:    ParseTemplate(cfg.Path),
		Body:    ParseTemplate(cfg.Body),
		Timeout: cfg.Timeout.Std(),
		Sync:    cfg.IsSync(),
		env:     b.env,
		key:     b.key("http"),
	}
	if len(cfg.Headers) > 0 {
		st.Headers = make(map[string]Template, len(cfg.Headers))
		for name, value := range cfg.Headers {
			st.Headers[name] = ParseTemplate(value)
		}
	}
	for _, e := range cfg.Extract {
		path, err := jsonpath.Compile(e.Path)
		if err != nil {
			return nil, fmt.Errorf("httpRequest extract %s: %w", e.Var, err)
		}
		st.Extract = append(st.Extract, Extraction{Var: e.Var, Path: path})
	}
	if cfg.Schema != "" {
		schema, err := jsonschema.Compile(cfg.Schema)
		if err != nil {
			return nil, fmt.Errorf("httpRequest schema: %w", err)
		}
		st.Schema = schema
	}

	if !st.Sync {
		return []session.Step{st}, nil
	}
	return []session.Step{st, &awaitResponse{key: st.key}}, nil
}

// SLA converts a sequence SLA configuration. nil stays nil.
func SLA(cfg *config.SLAConfig) *metrics.SLA {
	if cfg == nil {
		return nil
	}
	sla := &metrics.SLA{
		Window:           cfg.Window.Std(),
		ErrorRate:        cfg.ErrorRate,
		MeanResponseTime: cfg.MeanResponseTime.Std(),
	}
	for _, p := range cfg.Percentiles {
		sla.Percentiles = append(sla.Percentiles, metrics.PercentileLimit{
			Percentile:   p.Percentile,
			ResponseTime: p.ResponseTime.Std(),
		})
	}
	return sla
}
