package graph

// Physics is the closed table of allowed (verb, from.type, to.type) triples.
// Updating this table is a schema migration, not runtime configuration —
// it is a package-level literal rather than a loaded/configurable map,
// grounded on an opcode catalogue, likewise a fixed, generated-looking
// literal rather than something assembled at runtime.

// pair is one allowed (from, to) combination for a verb.
type pair struct {
	From EntityType
	To   EntityType
}

// Wildcard matches any EntityType in the physics table.
const Wildcard EntityType = "*"

var physicsTable = map[string][]pair{
	"yields":     {{TypeInquiry, TypeLearning}},
	"surfaces":   {{TypeLearning, TypePrinciple}},
	"induces":    {{TypeLearning, TypePattern}},
	"governs":    {{TypePrinciple, TypePattern}},
	"clarifies":  {{TypePrinciple, TypeStory}},
	"structures": {{TypePattern, TypeStory}, {TypePattern, TypeBehavior}},
	"specifies":  {{TypeStory, TypeBehavior}},
	"implements": {{TypeBehavior, TypeTool}},
	"verifies":   {{TypeTool, TypeBehavior}},
	"emits":      {{TypeTool, TypeSignal}},
	"triggers":   {{TypeSignal, TypeProtocol}, {TypeSignal, TypeFocus}},

	"crystallized-from": {{Wildcard, Wildcard}},
	"inhabits":          {{Wildcard, TypeCircle}},
	"belongs-to":        {{TypeAsset, TypeCircle}},
	"stewards":          {{TypePersona, TypeCircle}},
}

// Allowed reports whether a bond with the given verb may connect an entity
// of fromType to an entity of toType, per the closed physics table.
func Allowed(verb string, fromType, toType EntityType) bool {
	pairs, ok := physicsTable[verb]
	if !ok {
		return false
	}
	for _, p := range pairs {
		fromOK := p.From == Wildcard || p.From == fromType
		toOK := p.To == Wildcard || p.To == toType
		if fromOK && toOK {
			return true
		}
	}
	return false
}

// ToTypesFor returns the distinct To-types a verb allows when fromType is
// the From side, for callers (e.g. bond suggestion) that must enumerate
// candidates rather than just validate one triple. A returned Wildcard
// entry means the verb imposes no restriction on the To side.
func ToTypesFor(verb string, fromType EntityType) []EntityType {
	pairs, ok := physicsTable[verb]
	if !ok {
		return nil
	}
	seen := map[EntityType]bool{}
	var out []EntityType
	for _, p := range pairs {
		if p.From == Wildcard || p.From == fromType {
			if !seen[p.To] {
				seen[p.To] = true
				out = append(out, p.To)
			}
		}
	}
	return out
}

// KnownVerbs returns every verb present in the physics table, in table
// order, for capability listing and documentation.
func KnownVerbs() []string {
	verbs := make([]string, 0, len(physicsTable))
	for _, v := range []string{
		"yields", "surfaces", "induces", "governs", "clarifies", "structures",
		"specifies", "implements", "verifies", "emits", "triggers",
		"crystallized-from", "inhabits", "belongs-to", "stewards",
	} {
		if _, ok := physicsTable[v]; ok {
			verbs = append(verbs, v)
		}
	}
	return verbs
}
