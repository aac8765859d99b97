package steps

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	lphttp "github.com/wesleyorama2/loadphase/internal/http"
	"github.com/wesleyorama2/loadphase/internal/loop"
	"github.com/wesleyorama2/loadphase/internal/metrics"
	"github.com/wesleyorama2/loadphase/internal/session"
	"github.com/wesleyorama2/loadphase/pkg/jsonpath"
	"github.com/wesleyorama2/loadphase/pkg/jsonschema"
)

// Request outcomes, used as the outcome label of the requests counter.
const (
	OutcomeSuccess   = "success"
	OutcomeHTTPError = "http_error"
	OutcomeInvalid   = "invalid"
)

type httpState struct {
	pending bool
	done    bool
}

// Extraction stores the value at Path of a JSON response in Var.
type Extraction struct {
	Var  string
	Path jsonpath.Path
}

// HTTPRequest sends a request without blocking the executor. The response
// is handled on the session's executor. In sync mode the request is
// followed by an awaitResponse step holding the sequence until then.
type HTTPRequest struct {
	always
	Method  string
	Path    Template
	Headers map[string]Template
	Body    Template
	Timeout time.Duration
	Extract []Extraction
	Schema  *jsonschema.Schema
	Sync    bool

	env *Env
	key string
}

func (st *HTTPRequest) Reserve(s *session.Session) error {
	for _, e := range st.Extract {
		if s.IsDeclared(e.Var) {
			continue
		}
		if err := s.DeclareObject(e.Var); err != nil {
			return err
		}
	}
	if st.Sync {
		return declareSlots[httpState](s, st.key)
	}
	return nil
}

func (st *HTTPRequest) build(s *session.Session) (*lphttp.Request, error) {
	path, err := st.Path.Render(s)
	if err != nil {
		return nil, fmt.Errorf("path: %w", err)
	}
	req := lphttp.NewRequest(st.Method, path)
	for name, tmpl := range st.Headers {
		value, err := tmpl.Render(s)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", name, err)
		}
		req.WithHeader(name, value)
	}
	body, err := st.Body.Render(s)
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	if body != "" {
		req.WithBody([]byte(body))
	}
	return req, nil
}

func (st *HTTPRequest) Invoke(s *session.Session) error {
	req, err := st.build(s)
	if err != nil {
		return err
	}

	var slot *httpState
	if st.Sync {
		if slot, err = slotOf[httpState](s, st.key); err != nil {
			return err
		}
		*slot = httpState{pending: true}
	}

	stats := s.Statistics()
	phaseName := s.Phase().Name()
	generation := s.Generation()
	if stats != nil {
		stats.IncrementRequests()
	}

	ctx := st.env.Context
	if ctx == nil {
		ctx = context.Background()
	}
	cancel := context.CancelFunc(func() {})
	if st.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, st.Timeout)
	}

	go func() {
		defer cancel()
		resp, err := st.env.Client.Do(ctx, req)
		valid := st.record(stats, phaseName, resp, err)

		s.Executor().Submit(loop.TaskFunc(func() {
			if s.Generation() != generation || !s.IsActive() {
				return
			}
			if lphttp.Kind(err) == lphttp.FailureInvalid {
				s.Fail(fmt.Errorf("%s %s: %w", req.Method, req.Path, err))
				return
			}
			if valid {
				st.extract(s, resp.Body, stats)
			}
			if slot != nil {
				slot.pending = false
				slot.done = true
			}
			s.Proceed()
		}))
	}()
	return nil
}

// record updates statistics and instruments. It reports whether the
// response body may be used for extraction.
func (st *HTTPRequest) record(stats *metrics.Statistics, phaseName string, resp *lphttp.Response, err error) bool {
	inst := st.env.Instruments
	count := func(outcome string) {
		if inst != nil {
			inst.RequestsTotal.WithLabelValues(phaseName, outcome).Inc()
		}
	}

	if err != nil {
		kind := lphttp.Kind(err)
		if stats != nil {
			switch kind {
			case lphttp.FailureConnect:
				stats.AddConnectFailure()
			case lphttp.FailureReset:
				stats.AddReset()
			case lphttp.FailureTimeout:
				stats.AddTimeout()
			case lphttp.FailureCanceled, lphttp.FailureInvalid:
			default:
				stats.AddInternalError()
			}
		}
		count(kind.String())
		st.env.Logger.Debug().Err(err).Str("phase", phaseName).Str("method", st.Method).Msg("request failed")
		return false
	}

	if stats != nil {
		stats.RecordResponse(resp.StatusCode, resp.Timing.TotalTime)
	}
	if inst != nil {
		inst.ResponseTime.WithLabelValues(phaseName).Observe(resp.Timing.TotalTime.Seconds())
	}

	if st.Schema != nil {
		if verr := st.Schema.Validate(resp.Body); verr != nil {
			if stats != nil {
				stats.AddInvalid()
			}
			count(OutcomeInvalid)
			st.env.Logger.Debug().Err(verr).Str("phase", phaseName).Msg("response failed schema validation")
			return false
		}
	}

	if resp.StatusCode >= 400 {
		count(OutcomeHTTPError)
	} else {
		count(OutcomeSuccess)
	}
	return true
}

// extract copies values out of body. A missing path leaves the variable
// unset and counts the response as invalid.
func (st *HTTPRequest) extract(s *session.Session, body []byte, stats *metrics.Statistics) {
	for _, e := range st.Extract {
		result, err := e.Path.Get(body)
		if err != nil {
			if stats != nil {
				stats.AddInvalid()
			}
			st.env.Logger.Debug().Err(err).Str("var", e.Var).Msg("extraction failed")
			continue
		}
		if err := assign(s, e.Var, result); err != nil {
			st.env.Logger.Debug().Err(err).Str("var", e.Var).Msg("extraction failed")
		}
	}
}

func assign(s *session.Session, name string, result gjson.Result) error {
	err := s.SetInt(name, int(result.Int()))
	if err == nil || !errors.Is(err, session.ErrVariableUndeclared) {
		return err
	}
	var value any
	switch result.Type {
	case gjson.String:
		value = result.String()
	case gjson.Number:
		if i, perr := strconv.ParseInt(result.Raw, 10, 64); perr == nil {
			value = i
		} else {
			value = result.Float()
		}
	default:
		value = result.Value()
	}
	return s.SetObject(name, value)
}

// awaitResponse holds the sequence until the preceding sync request
// completed.
type awaitResponse struct {
	key string
}

func (st *awaitResponse) Prepare(s *session.Session) (bool, error) {
	slot, err := slotOf[httpState](s, st.key)
	if err != nil {
		return false, err
	}
	return slot.done, nil
}

func (st *awaitResponse) Invoke(s *session.Session) error {
	slot, err := slotOf[httpState](s, st.key)
	if err != nil {
		return err
	}
	*slot = httpState{}
	return nil
}
