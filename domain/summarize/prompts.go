package summarize

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

//go:embed prompts_v2.json
var promptsJSON []byte

type promptTemplate struct {
	Template       string          `json:"template"`
	ResponseSchema json.RawMessage `json:"response_schema"`
}

type promptFile struct {
	Meeting map[string]promptTemplate `json:"meeting"`
	Item    map[string]promptTemplate `json:"item"`
}

// prompts holds the loaded template set, frozen at construction
type prompts struct {
	meeting    map[string]promptTemplate
	item       map[string]promptTemplate
	itemSchema *genai.Schema
}

func loadPrompts() (*prompts, error) {
	var file promptFile
	if err := json.Unmarshal(promptsJSON, &file); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	p := &prompts{meeting: file.Meeting, item: file.Item}

	std, ok := file.Item["standard"]
	if !ok {
		return nil, fmt.Errorf("prompts missing item.standard")
	}
	if len(std.ResponseSchema) > 0 {
		schema, err := parseSchema(std.ResponseSchema)
		if err != nil {
			return nil, fmt.Errorf("item response schema: %w", err)
		}
		p.itemSchema = schema
	}
	return p, nil
}

// render interpolates {name} variables into a template
func (t promptTemplate) render(vars map[string]string) string {
	out := t.Template
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}

// parseSchema converts a JSON-Schema document to the provider schema type
func parseSchema(raw json.RawMessage) (*genai.Schema, error) {
	var doc struct {
		Type       string                     `json:"type"`
		Required   []string                   `json:"required"`
		Properties map[string]json.RawMessage `json:"properties"`
		Items      json.RawMessage            `json:"items"`
		Enum       []string                   `json:"enum"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	schema := &genai.Schema{Required: doc.Required}
	switch doc.Type {
	case "object":
		schema.Type = genai.TypeObject
	case "array":
		schema.Type = genai.TypeArray
	case "string":
		schema.Type = genai.TypeString
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	default:
		return nil, fmt.Errorf("unsupported schema type %q", doc.Type)
	}

	if len(doc.Enum) > 0 {
		schema.Enum = doc.Enum
	}
	if len(doc.Properties) > 0 {
		schema.Properties = make(map[string]*genai.Schema, len(doc.Properties))
		for name, prop := range doc.Properties {
			sub, err := parseSchema(prop)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", name, err)
			}
			schema.Properties[name] = sub
		}
	}
	if len(doc.Items) > 0 {
		sub, err := parseSchema(doc.Items)
		if err != nil {
			return nil, fmt.Errorf("array items: %w", err)
		}
		schema.Items = sub
	}
	return schema, nil
}
