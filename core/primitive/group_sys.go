package primitive

// RegisterSys wires the sys-domain primitives: health checks and other
// operations that don't touch the graph at all. "ping" backs the
// protocol-ping fixture used in pulse tests.
func RegisterSys(r *Registry) {
	r.Register(Descriptor{
		ID: "primitive-ping", Alias: "ping", Domain: "sys",
		Description: "return success unconditionally",
		Handler:     ping,
	})
	r.Register(Descriptor{
		ID: "primitive-noop", Alias: "noop", Domain: "sys",
		Description: "do nothing and return success",
		Handler:     noop,
	})
}

func ping(inputs map[string]any, ctx *Ctx) Response {
	return Ok(map[string]any{"pong": true})
}

func noop(inputs map[string]any, ctx *Ctx) Response {
	return Ok(nil)
}
