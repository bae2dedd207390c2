package decision

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// requiredFieldsSchema minimum structure of a usable decision object.
// "action" is accepted as an alias of "decision".
const requiredFieldsSchema = `{
  "type": "object",
  "required": ["symbol"],
  "anyOf": [
    {"required": ["decision"]},
    {"required": ["action"]}
  ],
  "properties": {
    "symbol": {"type": "string", "minLength": 1}
  }
}`

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("decision.json", strings.NewReader(requiredFieldsSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("decision.json")
}
