package classifier

import (
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

const labelManifestSchema = `{
  "type": "object",
  "required": ["labels"],
  "properties": {
    "labels": {
      "type": "array",
      "minItems": 1,
      "uniqueItems": true,
      "items": {"type": "string", "minLength": 1}
    }
  }
}`

// LoadLabels reads a YAML label manifest:
//
//	labels:
//	  - angry
//	  - happy
//
// Order is significant: the n-th label names the n-th model output.
func LoadLabels(path string) ([]Label, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label manifest: %w", err)
	}
	return ParseLabels(data)
}

// ParseLabels validates and decodes a YAML label manifest.
func ParseLabels(data []byte) ([]Label, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse label manifest: %w", err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(labelManifestSchema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate label manifest: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			msgs[i] = e.String()
		}
		return nil, fmt.Errorf("invalid label manifest: %s", strings.Join(msgs, "; "))
	}

	var manifest struct {
		Labels []string `yaml:"labels"`
	}
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse label manifest: %w", err)
	}
	return toLabels(manifest.Labels), nil
}
