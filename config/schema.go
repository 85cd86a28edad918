package config

import (
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// AttributeSchemas describes the attributes a kind accepts on its trackers and tools.
type AttributeSchemas struct {
	Tracker *jsonschema.Schema `json:"tracker"`
	Tool    *jsonschema.Schema `json:"tool"`
}

// Schema returns the JSON schema of a whole configuration file.
func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}

// AttributeSchema returns the schemas of kind's tracker and tool attributes.
func AttributeSchema(kind Kind) (AttributeSchemas, error) {
	trackerPayload, toolPayload := newTrackerPayload(kind), newToolPayload(kind)
	if trackerPayload == nil || toolPayload == nil {
		return AttributeSchemas{}, errors.Errorf("unknown tracker kind %q", kind)
	}
	return AttributeSchemas{
		Tracker: jsonschema.Reflect(trackerPayload),
		Tool:    jsonschema.Reflect(toolPayload),
	}, nil
}
