package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/smy-101/skillcatalog/internal/types"
)

// Schema returns the JSON schema of the catalog file. id may be empty.
func Schema(id string) ([]byte, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	s := reflector.Reflect(&types.Catalog{})
	s.Title = "Skill catalog"
	if id != "" {
		s.ID = jsonschema.ID(id)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return Pretty(data), nil
}
