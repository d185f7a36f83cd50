package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// marshalWithAttributes encodes known as a JSON object and merges the
// attribute bag into it. Declared fields always win over bag entries.
func marshalWithAttributes(known any, attrs map[string]any) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(attrs) == 0 {
		return data, nil
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for name, value := range attrs {
		if _, declared := fields[name]; declared {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal attribute %q: %w", name, err)
		}
		fields[name] = raw
	}
	return json.Marshal(fields)
}

// unmarshalWithAttributes decodes data into target (a pointer to a struct)
// and returns every member of the object that target does not declare.
// Numbers are kept as json.Number so they survive a round trip unchanged.
func unmarshalWithAttributes(data []byte, target any) (map[string]any, error) {
	if err := json.Unmarshal(data, target); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var all map[string]any
	if err := dec.Decode(&all); err != nil {
		return nil, err
	}
	for _, name := range jsonFieldNames(reflect.TypeOf(target).Elem()) {
		delete(all, name)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func jsonFieldNames(t reflect.Type) []string {
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		names = append(names, name)
	}
	return names
}

func cloneAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
