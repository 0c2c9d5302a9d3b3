package spec

import (
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

// testSpecSchema is the closed schema every *.test.json file must
// satisfy. Unknown fields and wrong types are load errors; every field
// is optional because an empty object is a valid placeholder spec.
const testSpecSchema = `
#TestSpec: close({
	"name"?:        string
	"pipe"?:        string
	"file"?:        string
	"endpoint"?:    string
	"blacklist"?:   [...string]
	"ignore"?:      bool
	"parameters"?:  {[string]: string | int | bool}
	"description"?: string
	"_id"?:         string
})
`

var (
	schemaOnce  sync.Once
	schemaValue cue.Value
)

func schema() cue.Value {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		schemaValue = ctx.CompileString(testSpecSchema).LookupPath(cue.ParsePath("#TestSpec"))
	})
	return schemaValue
}

// ValidateSchema checks that data is a single JSON object of the test
// spec shape. Any other shape is an error.
func ValidateSchema(data []byte) error {
	return cuejson.Validate(data, schema())
}
