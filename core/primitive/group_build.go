package primitive

import "chora/core/errkind"

// RegisterBuild wires the build-domain primitives: the ones that retire or
// restructure parts of the graph, as opposed to graph's create/read/update.
func RegisterBuild(r *Registry) {
	r.Register(Descriptor{
		ID: "primitive-compost", Alias: "compost", Domain: "build",
		Description: "archive an entity, refusing if active bonds remain unless forced",
		Inputs:      Schema{Required: []string{"id"}, Optional: []string{"force"}},
		Handler:     compost,
	})
}

func compost(inputs map[string]any, ctx *Ctx) Response {
	id, _ := inputs["id"].(string)
	if id == "" {
		return Err(string(errkind.InvalidInputs), "id is required")
	}
	force, _ := inputs["force"].(bool)
	if err := ctx.Store.ArchiveEntity(id, force); err != nil {
		return Err(string(errkind.KindOf(err)), err.Error())
	}
	return Ok(map[string]any{"id": id, "archived": true})
}
