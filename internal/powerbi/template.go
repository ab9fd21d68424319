// Package powerbi implements the request template and HTTP client for the
// PowerBI public querydata endpoint that backs the agency's reporting portal.
package powerbi

import (
	"encoding/json"
	"fmt"
	"os"
)

// Template is a querydata request body with a single route filter slot.
// The portal's export bodies carry one In-condition whose literal value
// selects the route; WithRoute substitutes that literal per request.
type Template struct {
	body map[string]any
}

// LoadTemplate reads and validates a request-body JSON file.
func LoadTemplate(path string) (*Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request body %s: %w", path, err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode request body %s: %w", path, err)
	}
	t := &Template{body: body}
	if _, err := t.routeSlot(); err != nil {
		return nil, fmt.Errorf("request body %s: %w", path, err)
	}
	return t, nil
}

// WithRoute returns the request body with the route literal substituted.
// The portal expects the literal single-quoted.
func (t *Template) WithRoute(route string) ([]byte, error) {
	slot, err := t.routeSlot()
	if err != nil {
		return nil, err
	}
	slot["Value"] = "'" + route + "'"
	payload, err := json.Marshal(t.body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return payload, nil
}

// routeSlot walks to the literal object at
// queries[0].Query.Commands[0].SemanticQueryDataShapeCommand.Query.Where[0].Condition.In.Values[0][0].Literal.
func (t *Template) routeSlot() (map[string]any, error) {
	cur := any(t.body)
	steps := []struct {
		key   string
		index int
	}{
		{key: "queries"}, {index: 0},
		{key: "Query"},
		{key: "Commands"}, {index: 0},
		{key: "SemanticQueryDataShapeCommand"},
		{key: "Query"},
		{key: "Where"}, {index: 0},
		{key: "Condition"},
		{key: "In"},
		{key: "Values"}, {index: 0}, {index: 0},
		{key: "Literal"},
	}
	for _, step := range steps {
		if step.key != "" {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("route filter: expected object before %q", step.key)
			}
			cur, ok = obj[step.key]
			if !ok {
				return nil, fmt.Errorf("route filter: missing key %q", step.key)
			}
			continue
		}
		arr, ok := cur.([]any)
		if !ok {
			return nil, fmt.Errorf("route filter: expected array")
		}
		if step.index >= len(arr) {
			return nil, fmt.Errorf("route filter: array shorter than %d", step.index+1)
		}
		cur = arr[step.index]
	}
	slot, ok := cur.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("route filter: literal is not an object")
	}
	return slot, nil
}
