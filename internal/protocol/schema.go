package protocol

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// commandSchemaJSON constrains client commands at the transport boundary:
// known action names only, and move requires integer dx/dy.
const commandSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["action"],
  "properties": {
    "action": {"enum": ["move", "harvest", "craft"]},
    "params": {"type": "object"}
  },
  "allOf": [
    {
      "if": {"properties": {"action": {"const": "move"}}},
      "then": {
        "required": ["params"],
        "properties": {
          "params": {
            "type": "object",
            "required": ["dx", "dy"],
            "properties": {
              "dx": {"type": "integer"},
              "dy": {"type": "integer"}
            }
          }
        }
      }
    }
  ]
}`

var commandSchema = jsonschema.MustCompileString("command.schema.json", commandSchemaJSON)

// ValidateCommand checks a decoded client command against the command schema.
func ValidateCommand(v any) error {
	return commandSchema.Validate(v)
}

// IsUnknownAction reports whether a schema validation failure was caused by
// an unrecognized action name, so the transport can mirror the historical
// "Unknown action" reply instead of a generic schema error.
func IsUnknownAction(err error) bool {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return false
	}
	for _, cause := range ve.Causes {
		if strings.HasSuffix(cause.KeywordLocation, "/properties/action/enum") {
			return true
		}
	}
	return strings.HasSuffix(ve.KeywordLocation, "/properties/action/enum")
}
