// Package tools holds the opaque callables the generator may invoke during a
// turn. Results are folded into the structured parts of the message the
// lifecycle controller persists.
package tools

import (
	"encoding/json"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// Handler executes one tool call. Arguments and results travel as JSON text,
// matching how they appear inside message parts.
type Handler func(args string) (string, error)

type Tool struct {
	Name        string
	Description string
	Handler     Handler
}

// Registry is the tool/function set handed to the generation collaborator.
type Registry struct {
	tools map[string]*Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

func (r *Registry) Register(t *Tool) {
	r.tools[t.Name] = t
}

func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Invoke runs the named tool against args.
func (r *Registry) Invoke(name, args string) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", errors.Errorf("unknown tool %q", name)
	}
	return t.Handler(args)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the registry with the built-in gameplay tools.
func Default() *Registry {
	r := NewRegistry()
	r.Register(&Tool{
		Name:        "calc",
		Description: "evaluate a binary arithmetic expression",
		Handler:     Calc,
	})
	r.Register(&Tool{
		Name:        "roll",
		Description: "pick one option using weighted randomness",
		Handler:     Roll,
	})
	return r
}

type calcArgs struct {
	A  float64 `json:"a"`
	Op string  `json:"op"`
	B  float64 `json:"b"`
}

// Calc evaluates {"a": x, "op": "+|-|*|/", "b": y} and returns the result as
// JSON.
func Calc(args string) (string, error) {
	var in calcArgs
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return "", errors.Wrap(err, "parsing calc arguments")
	}
	var result float64
	switch in.Op {
	case "+":
		result = in.A + in.B
	case "-":
		result = in.A - in.B
	case "*":
		result = in.A * in.B
	case "/":
		if in.B == 0 {
			return "", errors.New("division by zero")
		}
		result = in.A / in.B
	default:
		return "", errors.Errorf("unknown operator %q", in.Op)
	}
	out, err := json.Marshal(map[string]float64{"result": result})
	return string(out), err
}

type rollArgs struct {
	Options []string  `json:"options"`
	Weights []float64 `json:"weights,omitempty"`
}

// Roll picks one of {"options": [...], "weights": [...]} with probability
// proportional to its weight. Missing weights mean a uniform pick.
func Roll(args string) (string, error) {
	var in rollArgs
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return "", errors.Wrap(err, "parsing roll arguments")
	}
	if len(in.Options) == 0 {
		return "", errors.New("roll needs at least one option")
	}
	if in.Weights == nil {
		in.Weights = make([]float64, len(in.Options))
		for i := range in.Weights {
			in.Weights[i] = 1
		}
	}
	if len(in.Weights) != len(in.Options) {
		return "", errors.Errorf("got %d weights for %d options", len(in.Weights), len(in.Options))
	}

	total := 0.0
	for i, w := range in.Weights {
		if w < 0 {
			return "", errors.Errorf("negative weight for option %q", in.Options[i])
		}
		total += w
	}
	if total == 0 {
		return "", errors.New("weights sum to zero")
	}

	pick := rand.Float64() * total
	choice := in.Options[len(in.Options)-1]
	for i, w := range in.Weights {
		if pick < w {
			choice = in.Options[i]
			break
		}
		pick -= w
	}
	out, err := json.Marshal(map[string]string{"choice": choice})
	return string(out), err
}
