package primitive

import (
	"github.com/google/uuid"

	"chora/core/errkind"
	"chora/core/graph"
)

// RegisterAttention wires the attention-domain primitives: the ones the
// pulse and its triggered protocols use to raise and retire signals.
func RegisterAttention(r *Registry) {
	r.Register(Descriptor{
		ID: "primitive-emit-signal", Alias: "emit_signal", Domain: "attention",
		Description: "create a new active signal entity",
		Inputs:      Schema{Required: []string{"title", "category"}, Optional: []string{"urgency", "source_id", "data"}},
		Handler:     emitSignal,
	})
	r.Register(Descriptor{
		ID: "primitive-resolve-signal", Alias: "resolve_signal", Domain: "attention",
		Description: "mark a signal resolved or failed",
		Inputs:      Schema{Required: []string{"id"}, Optional: []string{"outcome", "error"}},
		Handler:     resolveSignal,
	})
}

func emitSignal(inputs map[string]any, ctx *Ctx) Response {
	title, _ := inputs["title"].(string)
	category, _ := inputs["category"].(string)
	if title == "" || category == "" {
		return Err(string(errkind.InvalidInputs), "title and category are required")
	}
	urgency, _ := inputs["urgency"].(string)
	if urgency == "" {
		urgency = "normal"
	}
	data, _ := inputs["data"].(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	data["title"] = title
	data["category"] = category
	data["urgency"] = urgency
	if sourceID, ok := inputs["source_id"].(string); ok {
		data["source_id"] = sourceID
	}

	id := "signal-" + uuid.NewString()
	e, err := ctx.Store.SaveEntity(graph.Entity{ID: id, Type: graph.TypeSignal, Data: data, Status: graph.StatusActive})
	if err != nil {
		return Err(string(errkind.KindOf(err)), err.Error())
	}
	return Ok(map[string]any{"id": e.ID})
}

func resolveSignal(inputs map[string]any, ctx *Ctx) Response {
	id, _ := inputs["id"].(string)
	if id == "" {
		return Err(string(errkind.InvalidInputs), "id is required")
	}
	e, err := ctx.Store.GetEntity(id)
	if err != nil {
		return Err(string(errkind.KindOf(err)), err.Error())
	}
	if e.Status == graph.StatusResolved {
		return Err(string(errkind.AlreadyResolved), "signal "+id+" already resolved")
	}
	if errMsg, ok := inputs["error"].(string); ok && errMsg != "" {
		e.Status = graph.StatusFailed
		e.Data["error"] = errMsg
	} else {
		e.Status = graph.StatusResolved
		if outcome, ok := inputs["outcome"].(map[string]any); ok {
			e.Data["outcome_data"] = outcome
		}
	}
	if _, err := ctx.Store.SaveEntity(e); err != nil {
		return Err(string(errkind.KindOf(err)), err.Error())
	}
	return Ok(map[string]any{"id": id, "status": string(e.Status)})
}
