package registration

import (
	"github.com/invopop/jsonschema"
)

// ConfigSchema describes the json accepted by LoadConfig.
func ConfigSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}
