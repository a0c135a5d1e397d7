// Package schema generates the JSON Schemas of the reports docsync prints.
package schema

import (
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/jingkaihe/docsync/pkg/history"
	"github.com/jingkaihe/docsync/pkg/render"
	"github.com/jingkaihe/docsync/pkg/techdetect"
	"github.com/pkg/errors"
)

// Generate reflects the JSON Schema of T with every definition inlined.
func Generate[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T

	return reflector.Reflect(v)
}

var generators = map[string]func() *jsonschema.Schema{
	"detect":  Generate[[]techdetect.TechReport],
	"tree":    Generate[techdetect.TreeReport],
	"match":   Generate[[]render.MatchReport],
	"sync":    Generate[render.SyncReport],
	"history": Generate[history.Run],
}

// Names returns the report names in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// For returns the schema of the named report.
func For(name string) (*jsonschema.Schema, error) {
	gen, ok := generators[name]
	if !ok {
		return nil, errors.Errorf("unknown report %q, must be one of: %v", name, Names())
	}
	return gen(), nil
}

// All returns the schema of every report keyed by name.
func All() map[string]*jsonschema.Schema {
	out := make(map[string]*jsonschema.Schema, len(generators))
	for name, gen := range generators {
		out[name] = gen()
	}
	return out
}
