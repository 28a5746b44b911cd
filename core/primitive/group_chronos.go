package primitive

import (
	"time"

	"chora/core/errkind"
)

// RegisterChronos wires the chronos-domain primitives: the small set of
// time-aware helpers protocols call for the current time and entity ages.
// Both read the system clock.
func RegisterChronos(r *Registry) {
	r.Register(Descriptor{
		ID: "primitive-now", Alias: "now", Domain: "chronos",
		Description: "return the current UTC timestamp",
		Handler:     nowHandler,
	})
	r.Register(Descriptor{
		ID: "primitive-age-days", Alias: "age_days", Domain: "chronos",
		Description: "return the age in days of an entity since its created_at",
		Inputs:      Schema{Required: []string{"id"}},
		Handler:     ageDays,
	})
}

func nowHandler(inputs map[string]any, ctx *Ctx) Response {
	return Ok(map[string]any{"now": time.Now().UTC().Format(time.RFC3339Nano)})
}

func ageDays(inputs map[string]any, ctx *Ctx) Response {
	id, _ := inputs["id"].(string)
	if id == "" {
		return Err(string(errkind.InvalidInputs), "id is required")
	}
	e, err := ctx.Store.GetEntity(id)
	if err != nil {
		return Err(string(errkind.KindOf(err)), err.Error())
	}
	age := time.Since(e.CreatedAt).Hours() / 24
	return Ok(map[string]any{"id": id, "age_days": age})
}
