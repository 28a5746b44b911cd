package primitive

// NewStandardRegistry builds a Registry with every built-in primitive group
// registered (attention, build, chronos, graph, io, logic, sys);
// registration order does not affect dispatch semantics. Cognition (the
// semantic layer) registers itself separately since it depends on a
// pluggable vectorizer the core registry doesn't know about.
func NewStandardRegistry() *Registry {
	r := NewRegistry()
	RegisterAttention(r)
	RegisterBuild(r)
	RegisterChronos(r)
	RegisterGraph(r)
	RegisterIO(r)
	RegisterLogic(r)
	RegisterSys(r)
	return r
}
