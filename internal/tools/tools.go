// Package tools exposes the fixed set of named operations agents invoke
// against a project: knowledge reads, search, workspace curation, notes and
// schedule mutations.
//
// Every op declares a parameter schema. Invoke validates params against it
// before touching the store, so a malformed call never acquires a lock.
package tools

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
)

// DefaultDeadline bounds one tool invocation end to end.
const DefaultDeadline = 10 * time.Second

var invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "maestro_tool_invocations_total",
	Help: "Tool invocations by op and outcome.",
}, []string{"op", "outcome"})

// Param types.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeBool   = "bool"
	TypeList   = "list"
	TypeObject = "object"
)

// ParamSpec describes one parameter of an op.
type ParamSpec struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Description string   `json:"description,omitempty"`
}

// OpSpec is the discoverable descriptor of one op.
type OpSpec struct {
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params"`
}

// Args is the validated parameter set passed to a handler.
type Args map[string]any

// Str returns a string param, empty when absent.
func (a Args) Str(key string) string {
	s, _ := a[key].(string)
	return s
}

// Int returns an int param; JSON numbers arrive as float64.
func (a Args) Int(key string) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Bool returns a bool param, false when absent.
func (a Args) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// StrList returns a string-list param, nil when absent.
func (a Args) StrList(key string) []string {
	raw, ok := a[key].([]any)
	if !ok {
		if s, ok := a[key].([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Object returns a nested object param, nil when absent.
func (a Args) Object(key string) map[string]any {
	m, _ := a[key].(map[string]any)
	return m
}

type op struct {
	spec    OpSpec
	handler func(ctx context.Context, project string, args Args) (any, error)
}

// Registry holds the op set for one runtime.
type Registry struct {
	ops   map[string]*op
	order []string
}

func (r *Registry) register(spec OpSpec, handler func(context.Context, string, Args) (any, error)) {
	if spec.Params == nil {
		spec.Params = []ParamSpec{}
	}
	r.ops[spec.Name] = &op{spec: spec, handler: handler}
	r.order = append(r.order, spec.Name)
}

// List returns the op descriptors in a stable order: by category, then by
// registration order within it.
func (r *Registry) List() []OpSpec {
	out := make([]OpSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.ops[name].spec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// Invoke validates params and runs the named op against a project. The call
// carries a 10 s deadline unless the caller set a tighter one.
func (r *Registry) Invoke(ctx context.Context, project, name string, params map[string]any) (any, error) {
	o, ok := r.ops[name]
	if !ok {
		return nil, fault.Newf(fault.KindUnsupportedAction, "unknown tool op %q", name)
	}
	if err := validate(o.spec, params); err != nil {
		invocationsTotal.WithLabelValues(name, string(fault.KindInvalidArgument)).Inc()
		return nil, err
	}
	if _, has := ctx.Deadline(); !has {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultDeadline)
		defer cancel()
	}

	start := time.Now()
	result, err := o.handler(ctx, project, Args(params))
	outcome := "ok"
	if err != nil {
		outcome = string(fault.KindOf(err))
	}
	invocationsTotal.WithLabelValues(name, outcome).Inc()
	log.Debug().Str("op", name).Str("project", project).Dur("took", time.Since(start)).Str("outcome", outcome).Msg("tool invoked")
	return result, err
}

func validate(spec OpSpec, params map[string]any) error {
	for _, p := range spec.Params {
		v, present := params[p.Name]
		if !present || v == nil {
			if p.Required {
				return fault.Newf(fault.KindInvalidArgument, "%s: missing required param %q", spec.Name, p.Name)
			}
			continue
		}
		if err := checkType(p, v); err != nil {
			return fault.Newf(fault.KindInvalidArgument, "%s: %v", spec.Name, err)
		}
	}
	return nil
}

func checkType(p ParamSpec, v any) error {
	switch p.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("param %q must be a string", p.Name)
		}
		if len(p.Enum) > 0 {
			for _, e := range p.Enum {
				if s == e {
					return nil
				}
			}
			return fmt.Errorf("param %q must be one of %v, got %q", p.Name, p.Enum, s)
		}
	case TypeInt:
		switch v.(type) {
		case float64, int:
		default:
			return fmt.Errorf("param %q must be an integer", p.Name)
		}
	case TypeBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("param %q must be a boolean", p.Name)
		}
	case TypeList:
		switch v.(type) {
		case []any, []string:
		default:
			return fmt.Errorf("param %q must be a list", p.Name)
		}
	case TypeObject:
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("param %q must be an object", p.Name)
		}
	}
	return nil
}
