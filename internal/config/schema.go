// Package config defines the benchmark file format: scenarios made of
// sequences of steps, and phases that admit sessions executing them.
package config

import (
	"fmt"
	"time"

	"github.com/wesleyorama2/loadphase/internal/phase"
)

// Benchmark is the root of a benchmark file.
type Benchmark struct {
	// Name of the benchmark, used in reports
	Name string `json:"name" yaml:"name"`

	// Threads is the number of event loops (default GOMAXPROCS)
	Threads int `json:"threads,omitempty" yaml:"threads,omitempty"`

	// StatisticsInterval is how often statistics intervals are closed and
	// SLAs checked (default 1s)
	StatisticsInterval Duration `json:"statisticsInterval,omitempty" yaml:"statisticsInterval,omitempty"`

	// FailFast fails a phase as soon as one of its sessions fails
	FailFast bool `json:"failFast,omitempty" yaml:"failFast,omitempty"`

	// HTTP client settings shared by all HTTP steps
	HTTP HTTPConfig `json:"http,omitempty" yaml:"http,omitempty"`

	// Scenarios keyed by name
	Scenarios map[string]*ScenarioConfig `json:"scenarios" yaml:"scenarios"`

	// Phases keyed by name
	Phases map[string]*PhaseConfig `json:"phases" yaml:"phases"`
}

// HTTPConfig configures the shared HTTP client.
type HTTPConfig struct {
	BaseURL             string            `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Timeout             Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxIdleConnsPerHost int               `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`
	MaxConnsPerHost     int               `json:"maxConnsPerHost,omitempty" yaml:"maxConnsPerHost,omitempty"`
	DisableKeepAlives   bool              `json:"disableKeepAlives,omitempty" yaml:"disableKeepAlives,omitempty"`
	InsecureSkipVerify  bool              `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
	Headers             map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// ScenarioConfig defines what a session executes.
type ScenarioConfig struct {
	// InitialSequences are started with every session
	InitialSequences []string `json:"initialSequences" yaml:"initialSequences"`

	// Sequences available to the scenario
	Sequences []*SequenceConfig `json:"sequences" yaml:"sequences"`

	// IntVars and ObjectVars are declared on every session
	IntVars    []string `json:"intVars,omitempty" yaml:"intVars,omitempty"`
	ObjectVars []string `json:"objectVars,omitempty" yaml:"objectVars,omitempty"`

	// MaxSequences bounds concurrently running sequence instances per
	// session (default 16)
	MaxSequences int `json:"maxSequences,omitempty" yaml:"maxSequences,omitempty"`
}

// SequenceConfig is a named list of steps.
type SequenceConfig struct {
	Name  string        `json:"name" yaml:"name"`
	Steps []*StepConfig `json:"steps" yaml:"steps"`
	SLA   *SLAConfig    `json:"sla,omitempty" yaml:"sla,omitempty"`
}

// SLAConfig limits the statistics of a sequence.
type SLAConfig struct {
	Window           Duration          `json:"window,omitempty" yaml:"window,omitempty"`
	ErrorRate        float64           `json:"errorRate,omitempty" yaml:"errorRate,omitempty"`
	MeanResponseTime Duration          `json:"meanResponseTime,omitempty" yaml:"meanResponseTime,omitempty"`
	Percentiles      []PercentileLimit `json:"percentiles,omitempty" yaml:"percentiles,omitempty"`
}

// PercentileLimit bounds the response time at a percentile.
type PercentileLimit struct {
	Percentile   float64  `json:"percentile" yaml:"percentile"`
	ResponseTime Duration `json:"responseTime" yaml:"responseTime"`
}

// StepConfig holds exactly one step definition.
type StepConfig struct {
	HTTPRequest   *HTTPRequestStep   `json:"httpRequest,omitempty" yaml:"httpRequest,omitempty"`
	ThinkTime     *ThinkTimeStep     `json:"thinkTime,omitempty" yaml:"thinkTime,omitempty"`
	SetInt        *SetIntStep        `json:"setInt,omitempty" yaml:"setInt,omitempty"`
	AddToInt      *AddToIntStep      `json:"addToInt,omitempty" yaml:"addToInt,omitempty"`
	SetObject     *SetObjectStep     `json:"setObject,omitempty" yaml:"setObject,omitempty"`
	AwaitVar      *AwaitVarStep      `json:"awaitVar,omitempty" yaml:"awaitVar,omitempty"`
	NextSequence  *SequenceRefStep   `json:"nextSequence,omitempty" yaml:"nextSequence,omitempty"`
	NewSequence   *SequenceRefStep   `json:"newSequence,omitempty" yaml:"newSequence,omitempty"`
	BreakSequence *BreakSequenceStep `json:"breakSequence,omitempty" yaml:"breakSequence,omitempty"`
	Stop          *StopStep          `json:"stop,omitempty" yaml:"stop,omitempty"`
}

// Kinds returns the names of the step kinds that are set.
func (s *StepConfig) Kinds() []string {
	var kinds []string
	add := func(set bool, name string) {
		if set {
			kinds = append(kinds, name)
		}
	}
	add(s.HTTPRequest != nil, "httpRequest")
	add(s.ThinkTime != nil, "thinkTime")
	add(s.SetInt != nil, "setInt")
	add(s.AddToInt != nil, "addToInt")
	add(s.SetObject != nil, "setObject")
	add(s.AwaitVar != nil, "awaitVar")
	add(s.NextSequence != nil, "nextSequence")
	add(s.NewSequence != nil, "newSequence")
	add(s.BreakSequence != nil, "breakSequence")
	add(s.Stop != nil, "stop")
	return kinds
}

// HTTPRequestStep sends a request and records its outcome.
type HTTPRequestStep struct {
	Method  string            `json:"method" yaml:"method"`
	Path    string            `json:"path" yaml:"path"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`

	// Extract stores values from the JSON response body in object vars
	Extract []Extraction `json:"extract,omitempty" yaml:"extract,omitempty"`

	// Schema is a JSON schema the response body must satisfy
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`

	// Timeout overrides the client timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Sync waits for the response before the next step (default true)
	Sync *bool `json:"sync,omitempty" yaml:"sync,omitempty"`
}

// IsSync reports whether the sequence waits for the response.
func (h *HTTPRequestStep) IsSync() bool {
	return h.Sync == nil || *h.Sync
}

// Extraction copies a value from a JSON body into a variable.
type Extraction struct {
	Var  string `json:"var" yaml:"var"`
	Path string `json:"path" yaml:"path"`
}

// ThinkTimeStep pauses the sequence.
type ThinkTimeStep struct {
	Duration Duration `json:"duration" yaml:"duration"`
}

// SetIntStep assigns an integer variable.
type SetIntStep struct {
	Var   string `json:"var" yaml:"var"`
	Value int    `json:"value" yaml:"value"`
}

// AddToIntStep adds to an integer variable.
type AddToIntStep struct {
	Var   string `json:"var" yaml:"var"`
	Value int    `json:"value" yaml:"value"`
}

// SetObjectStep assigns an object variable.
type SetObjectStep struct {
	Var   string `json:"var" yaml:"var"`
	Value string `json:"value" yaml:"value"`
}

// AwaitVarStep blocks until a variable is set.
type AwaitVarStep struct {
	Var string `json:"var" yaml:"var"`
}

// SequenceRefStep names a sequence to start.
type SequenceRefStep struct {
	Sequence string `json:"sequence" yaml:"sequence"`
}

// BreakSequenceStep ends the current sequence when an integer variable
// equals Value.
type BreakSequenceStep struct {
	Var   string `json:"var" yaml:"var"`
	Value int    `json:"value" yaml:"value"`
}

// StopStep ends every sequence of the session.
type StopStep struct{}

// PhaseConfig defines a phase. Exactly one model must be set.
type PhaseConfig struct {
	Scenario string `json:"scenario" yaml:"scenario"`

	AtOnce         *UsersModel    `json:"atOnce,omitempty" yaml:"atOnce,omitempty"`
	Always         *UsersModel    `json:"always,omitempty" yaml:"always,omitempty"`
	Sequentially   *RepeatsModel  `json:"sequentially,omitempty" yaml:"sequentially,omitempty"`
	RampPerSec     *RampModel     `json:"rampPerSec,omitempty" yaml:"rampPerSec,omitempty"`
	ConstantPerSec *ConstantModel `json:"constantPerSec,omitempty" yaml:"constantPerSec,omitempty"`

	// StartTime is the offset from the start of the run; negative waits
	// for dependencies only
	StartTime        Duration `json:"startTime,omitempty" yaml:"startTime,omitempty"`
	StartAfter       []string `json:"startAfter,omitempty" yaml:"startAfter,omitempty"`
	StartAfterStrict []string `json:"startAfterStrict,omitempty" yaml:"startAfterStrict,omitempty"`

	Duration    Duration  `json:"duration,omitempty" yaml:"duration,omitempty"`
	MaxDuration *Duration `json:"maxDuration,omitempty" yaml:"maxDuration,omitempty"`
}

// UsersModel configures atOnce and always.
type UsersModel struct {
	Users int `json:"users" yaml:"users"`
}

// RepeatsModel configures sequentially.
type RepeatsModel struct {
	Repeats int `json:"repeats" yaml:"repeats"`
}

// RampModel configures rampPerSec.
type RampModel struct {
	InitialUsersPerSec int `json:"initialUsersPerSec" yaml:"initialUsersPerSec"`
	TargetUsersPerSec  int `json:"targetUsersPerSec" yaml:"targetUsersPerSec"`
	MaxSessions        int `json:"maxSessions,omitempty" yaml:"maxSessions,omitempty"`
}

// ConstantModel configures constantPerSec.
type ConstantModel struct {
	UsersPerSec int `json:"usersPerSec" yaml:"usersPerSec"`
	MaxSessions int `json:"maxSessions,omitempty" yaml:"maxSessions,omitempty"`
}

// ModelCount returns how many models are set.
func (p *PhaseConfig) ModelCount() int {
	n := 0
	for _, set := range []bool{p.AtOnce != nil, p.Always != nil, p.Sequentially != nil, p.RampPerSec != nil, p.ConstantPerSec != nil} {
		if set {
			n++
		}
	}
	return n
}

// Model converts the configured model.
func (p *PhaseConfig) Model() (phase.ModelConfig, error) {
	if n := p.ModelCount(); n != 1 {
		return phase.ModelConfig{}, fmt.Errorf("exactly one scheduling model is required, found %d", n)
	}
	switch {
	case p.AtOnce != nil:
		return phase.ModelConfig{Type: phase.TypeAtOnce, Users: p.AtOnce.Users}, nil
	case p.Always != nil:
		return phase.ModelConfig{Type: phase.TypeAlways, Users: p.Always.Users}, nil
	case p.Sequentially != nil:
		return phase.ModelConfig{Type: phase.TypeSequentially, Repeats: p.Sequentially.Repeats}, nil
	case p.RampPerSec != nil:
		return phase.ModelConfig{
			Type:               phase.TypeRampPerSec,
			InitialUsersPerSec: p.RampPerSec.InitialUsersPerSec,
			TargetUsersPerSec:  p.RampPerSec.TargetUsersPerSec,
			MaxSessions:        p.RampPerSec.MaxSessions,
		}, nil
	default:
		return phase.ModelConfig{
			Type:        phase.TypeConstantPerSec,
			UsersPerSec: p.ConstantPerSec.UsersPerSec,
			MaxSessions: p.ConstantPerSec.MaxSessions,
		}, nil
	}
}

// MaxDurationOrNone returns the max duration, or -1 when unset.
func (p *PhaseConfig) MaxDurationOrNone() time.Duration {
	if p.MaxDuration == nil {
		return -1
	}
	return p.MaxDuration.Std()
}

// Defaults
const (
	DefaultStatisticsInterval = time.Second
	DefaultHTTPTimeout        = 30 * time.Second
)

// ApplyDefaults fills unset optional values.
func (b *Benchmark) ApplyDefaults() {
	if b.StatisticsInterval <= 0 {
		b.StatisticsInterval = Duration(DefaultStatisticsInterval)
	}
	if b.HTTP.Timeout <= 0 {
		b.HTTP.Timeout = Duration(DefaultHTTPTimeout)
	}
	if b.Name == "" {
		b.Name = "benchmark"
	}
}
