package primitive

import (
	"github.com/google/uuid"

	"chora/core/errkind"
	"chora/core/graph"
)

// RegisterGraph wires the graph-domain primitives: entity and bond
// manipulation, the operations the VM's protocols call most often.
func RegisterGraph(r *Registry) {
	r.Register(Descriptor{
		ID: "primitive-manifest-entity", Alias: "manifest_entity", Domain: "graph",
		Description: "create a new entity of the given type",
		Inputs:      Schema{Required: []string{"type"}, Optional: []string{"id", "data"}},
		Handler:     manifestEntity,
	})
	r.Register(Descriptor{
		ID: "primitive-update-entity-data", Alias: "update_entity_data", Domain: "graph",
		Description: "merge fields into an entity's data and bump updated_at",
		Inputs:      Schema{Required: []string{"id", "data"}},
		Handler:     updateEntityData,
	})
	r.Register(Descriptor{
		ID: "primitive-get-entity", Alias: "get_entity", Domain: "graph",
		Description: "fetch a single entity by id",
		Inputs:      Schema{Required: []string{"id"}},
		Handler:     getEntity,
	})
	r.Register(Descriptor{
		ID: "primitive-query-entities", Alias: "query_entities", Domain: "graph",
		Description: "list live entities matching a type/status filter",
		Inputs:      Schema{Optional: []string{"type", "status", "limit"}},
		Handler:     queryEntities,
	})
	r.Register(Descriptor{
		ID: "primitive-manage-bond", Alias: "manage_bond", Domain: "graph",
		Description: "create or update a typed bond, subject to the physics table",
		Inputs:      Schema{Required: []string{"verb", "from_id", "to_id"}, Optional: []string{"confidence", "metadata"}},
		Handler:     manageBond,
	})
	r.Register(Descriptor{
		ID: "primitive-get-constellation", Alias: "get_constellation", Domain: "graph",
		Description: "return the 1-hop bond neighborhood around an entity, grouped by verb",
		Inputs:      Schema{Required: []string{"id"}},
		Handler:     getConstellation,
	})
}

// manifestEntity upserts on an ID collision rather than raising
// errkind.DuplicateID: save_entity is documented as an upsert, and no
// operation is specified to require collision rejection.
func manifestEntity(inputs map[string]any, ctx *Ctx) Response {
	typ, _ := inputs["type"].(string)
	if typ == "" {
		return Err(string(errkind.InvalidInputs), "type is required")
	}
	id, _ := inputs["id"].(string)
	if id == "" {
		id = typ + "-" + uuid.NewString()
	}
	data, _ := inputs["data"].(map[string]any)

	e, err := ctx.Store.SaveEntity(graph.Entity{ID: id, Type: graph.EntityType(typ), Data: data})
	if err != nil {
		return Err(string(errkind.KindOf(err)), err.Error())
	}
	return Ok(map[string]any{"id": e.ID, "type": string(e.Type), "created_at": e.CreatedAt, "updated_at": e.UpdatedAt})
}

func updateEntityData(inputs map[string]any, ctx *Ctx) Response {
	id, _ := inputs["id"].(string)
	if id == "" {
		return Err(string(errkind.InvalidInputs), "id is required")
	}
	patch, _ := inputs["data"].(map[string]any)
	if patch == nil {
		return Err(string(errkind.InvalidInputs), "data is required")
	}

	existing, err := ctx.Store.GetEntity(id)
	if err != nil {
		return Err(string(errkind.KindOf(err)), err.Error())
	}
	for k, v := range patch {
		existing.Data[k] = v
	}
	e, err := ctx.Store.SaveEntity(existing)
	if err != nil {
		return Err(string(errkind.KindOf(err)), err.Error())
	}
	return Ok(map[string]any{"id": e.ID, "updated_at": e.UpdatedAt})
}

func getEntity(inputs map[string]any, ctx *Ctx) Response {
	id, _ := inputs["id"].(string)
	if id == "" {
		return Err(string(errkind.InvalidInputs), "id is required")
	}
	e, err := ctx.Store.GetEntity(id)
	if err != nil {
		return Err(string(errkind.KindOf(err)), err.Error())
	}
	return Ok(map[string]any{"id": e.ID, "type": string(e.Type), "data": e.Data, "status": string(e.Status)})
}

func queryEntities(inputs map[string]any, ctx *Ctx) Response {
	var f struct {
		Type   string
		Status string
		Limit  int
	}
	f.Type, _ = inputs["type"].(string)
	f.Status, _ = inputs["status"].(string)
	if l, ok := inputs["limit"].(int); ok {
		f.Limit = l
	} else if l, ok := inputs["limit"].(float64); ok {
		f.Limit = int(l)
	}

	entities, err := ctx.Store.QueryEntities(queryFilterFrom(f.Type, f.Status, f.Limit))
	if err != nil {
		return Err(string(errkind.ExecutionError), err.Error())
	}
	items := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		items = append(items, map[string]any{"id": e.ID, "type": string(e.Type), "status": string(e.Status)})
	}
	return Ok(map[string]any{"items": items, "count": len(items)})
}

func manageBond(inputs map[string]any, ctx *Ctx) Response {
	verb, _ := inputs["verb"].(string)
	from, _ := inputs["from_id"].(string)
	to, _ := inputs["to_id"].(string)
	if verb == "" || from == "" || to == "" {
		return Err(string(errkind.InvalidInputs), "verb, from_id, and to_id are required")
	}
	var confidence *float64
	if c, ok := inputs["confidence"].(float64); ok {
		confidence = &c
	}
	metadata, _ := inputs["metadata"].(map[string]any)

	b, err := ctx.Store.ManageBond(verb, from, to, confidence, metadata)
	if err != nil {
		return Err(string(errkind.KindOf(err)), err.Error())
	}
	return Ok(map[string]any{"id": b.ID, "confidence": b.Confidence, "status": string(b.Status)})
}

func getConstellation(inputs map[string]any, ctx *Ctx) Response {
	id, _ := inputs["id"].(string)
	if id == "" {
		return Err(string(errkind.InvalidInputs), "id is required")
	}
	cons, err := ctx.Store.GetConstellation(id)
	if err != nil {
		return Err(string(errkind.ExecutionError), err.Error())
	}
	out := map[string]any{}
	for verb, entries := range cons {
		list := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			list = append(list, map[string]any{
				"bond_id": e.Bond.ID, "counterpart_id": e.Counterpart.ID,
				"counterpart_type": string(e.Counterpart.Type), "outbound": e.Outbound,
			})
		}
		out[verb] = list
	}
	return Ok(map[string]any{"verbs": out})
}
