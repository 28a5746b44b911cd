package primitive

import (
	"chora/core/graph"
	"chora/core/store"
)

func queryFilterFrom(typ, status string, limit int) store.Filter {
	return store.Filter{
		Type:   graph.EntityType(typ),
		Status: graph.Status(status),
		Limit:  limit,
	}
}
