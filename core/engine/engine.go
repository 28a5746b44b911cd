// Package engine implements the dispatch/capability layer: the single
// "event horizon" a front end calls through, normalizing intents and
// routing them to primitives or protocols.
package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"chora/core/errkind"
	"chora/core/graph"
	"chora/core/primitive"
	"chora/core/store"
	"chora/core/vm"
)

// Result is the uniform dispatch outcome.
type Result struct {
	OK           bool
	Data         map[string]any
	ExitNode     string
	ErrorKind    string
	ErrorMessage string
}

// Capability describes one dispatchable intent.
type Capability struct {
	ID          string
	Kind        string // "protocol" | "primitive"
	Description string
	Required    []string
	Optional    []string
}

// Engine is the injectable dispatch collaborator: it owns no process-wide
// state, just a store and a primitive registry.
type Engine struct {
	Store    *store.Store
	Registry *primitive.Registry
	// StepBudget bounds protocol execution; zero uses vm.DefaultStepBudget.
	StepBudget int
}

// New constructs an Engine over s and reg.
func New(s *store.Store, reg *primitive.Registry) *Engine {
	return &Engine{Store: s, Registry: reg}
}

// Dispatch normalizes intent, then routes to a primitive or a protocol.
// sink receives primitive/protocol output writes; it may be nil, in which
// case Ctx.Writeln falls back to os.Stdout. deadline, if non-zero, bounds
// protocol execution.
func (e *Engine) Dispatch(ctx context.Context, intent string, inputs map[string]any, sink io.Writer, persona string, deadline time.Duration) Result {
	id, kind, err := e.resolveIntent(intent)
	if err != nil {
		return Result{OK: false, ErrorKind: string(errkind.KindOf(err)), ErrorMessage: err.Error()}
	}

	pctx := &primitive.Ctx{Context: ctx, Sink: sink, Store: e.Store, Persona: persona}

	if kind == "primitive" {
		resp := e.Registry.Invoke(id, inputs, pctx)
		if resp.Status == primitive.StatusError {
			return Result{OK: false, ErrorKind: resp.ErrorKind, ErrorMessage: resp.ErrorMessage}
		}
		return Result{OK: true, Data: resp.Data}
	}

	return e.runProtocol(pctx, id, inputs, deadline)
}

func (e *Engine) runProtocol(pctx *primitive.Ctx, protocolID string, inputs map[string]any, deadline time.Duration) Result {
	ent, err := e.Store.GetEntity(protocolID)
	if err != nil {
		return Result{OK: false, ErrorKind: string(errkind.NotFound), ErrorMessage: fmt.Sprintf("protocol %q not found", protocolID)}
	}
	g, err := decodeGraph(ent)
	if err != nil {
		return Result{OK: false, ErrorKind: string(errkind.ExecutionError), ErrorMessage: err.Error()}
	}

	budget := e.StepBudget
	done := make(chan *vm.State, 1)
	go func() {
		done <- vm.Run(g, protocolID, inputs, e.Registry, pctx, budget)
	}()

	if deadline <= 0 {
		st := <-done
		return resultFromState(st)
	}

	select {
	case st := <-done:
		return resultFromState(st)
	case <-time.After(deadline):
		return Result{OK: false, ErrorKind: string(errkind.ExecutionError), ErrorMessage: "timeout"}
	}
}

func resultFromState(st *vm.State) Result {
	if st.Status != vm.StatusFulfilled {
		return Result{OK: false, ErrorKind: st.ErrorKind, ErrorMessage: st.ErrorMessage}
	}
	return Result{OK: true, Data: st.Output, ExitNode: st.ExitNode}
}

// resolveIntent applies a fixed normalization order: verbatim id, then
// protocol-/primitive- prefixes, then underscore/hyphen swap. Protocols
// win ties.
func (e *Engine) resolveIntent(intent string) (id string, kind string, err error) {
	if intent == "" {
		return "", "", errkind.New(errkind.IntentNotFound, "empty intent")
	}

	if e.isProtocol(intent) {
		return intent, "protocol", nil
	}
	if _, ok := e.Registry.Lookup(intent); ok {
		return intent, "primitive", nil
	}

	protoID := "protocol-" + intent
	primID := "primitive-" + intent
	if e.isProtocol(protoID) {
		return protoID, "protocol", nil
	}
	if _, ok := e.Registry.Lookup(primID); ok {
		return primID, "primitive", nil
	}

	swapped := swapSeparators(intent)
	if e.isProtocol(swapped) {
		return swapped, "protocol", nil
	}
	if _, ok := e.Registry.Lookup(swapped); ok {
		return swapped, "primitive", nil
	}
	protoSwapped := "protocol-" + swapped
	primSwapped := "primitive-" + swapped
	if e.isProtocol(protoSwapped) {
		return protoSwapped, "protocol", nil
	}
	if _, ok := e.Registry.Lookup(primSwapped); ok {
		return primSwapped, "primitive", nil
	}

	return "", "", errkind.New(errkind.IntentNotFound, fmt.Sprintf("no primitive or protocol resolves intent %q", intent))
}

func (e *Engine) isProtocol(id string) bool {
	ent, err := e.Store.GetEntity(id)
	if err != nil {
		return false
	}
	return ent.Type == graph.TypeProtocol
}

func swapSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '_':
			b.WriteRune('-')
		case '-':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Capabilities enumerates every dispatchable protocol and primitive.
func (e *Engine) Capabilities() ([]Capability, error) {
	var out []Capability

	protocols, err := e.Store.QueryEntities(store.Filter{Type: graph.TypeProtocol})
	if err != nil {
		return nil, err
	}
	for _, p := range protocols {
		c := Capability{ID: p.ID, Kind: "protocol"}
		if desc, ok := p.Data["description"].(string); ok {
			c.Description = desc
		}
		if schema, ok := p.Data["inputs_schema"].(map[string]any); ok {
			c.Required = stringSlice(schema["required"])
			c.Optional = stringSlice(schema["optional"])
		}
		out = append(out, c)
	}

	for _, d := range e.Registry.List() {
		out = append(out, Capability{
			ID: d.ID, Kind: "primitive", Description: d.Description,
			Required: d.Inputs.Required, Optional: d.Inputs.Optional,
		})
	}
	return out, nil
}

func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
