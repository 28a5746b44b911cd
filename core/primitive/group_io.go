package primitive

import "chora/core/errkind"

// RegisterIO wires the io-domain primitives: the only primitives allowed
// to write user-visible text, and they do it exclusively through ctx.Sink.
func RegisterIO(r *Registry) {
	r.Register(Descriptor{
		ID: "primitive-echo", Alias: "echo", Domain: "io",
		Description: "write a message to the sink",
		Inputs:      Schema{Required: []string{"message"}},
		Handler:     echo,
	})
}

func echo(inputs map[string]any, ctx *Ctx) Response {
	msg, _ := inputs["message"].(string)
	if msg == "" {
		return Err(string(errkind.InvalidInputs), "message is required")
	}
	ctx.Writeln("%s", msg)
	return Ok(map[string]any{"written": len(msg)})
}
