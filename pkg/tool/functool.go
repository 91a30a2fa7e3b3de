// Copyright 2026 Tolga Akin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Func wraps a plain Go function as a Tool. The argument schema is reflected
// from the Args struct tags:
//
//	type Args struct {
//	    Query string `json:"query" jsonschema:"required,description=Search query"`
//	    Limit int    `json:"limit,omitempty" jsonschema:"description=Max results"`
//	}
type Func[Args any] struct {
	descriptor Descriptor
	handler    func(ctx context.Context, args Args) (string, error)
}

// NewFunc creates a function-backed tool, reflecting the parameter schema
// from the Args type.
func NewFunc[Args any](name, description string, handler func(ctx context.Context, args Args) (string, error)) (*Func[Args], error) {
	schema, err := reflectSchema[Args]()
	if err != nil {
		return nil, fmt.Errorf("failed to reflect schema for tool %q: %w", name, err)
	}
	descriptor, err := DescriptorFromSchema(name, description, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reflected schema for tool %q: %w", name, err)
	}
	return &Func[Args]{descriptor: descriptor, handler: handler}, nil
}

// Descriptor returns the tool metadata.
func (f *Func[Args]) Descriptor() Descriptor {
	return f.descriptor
}

// Execute decodes argsJSON into Args and invokes the handler. Unknown fields
// and malformed JSON surface as ValidationError.
func (f *Func[Args]) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args Args
	if argsJSON != "" {
		decoder := json.NewDecoder(bytes.NewReader([]byte(argsJSON)))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&args); err != nil {
			return "", &ValidationError{Tool: f.descriptor.Name, Reason: err.Error()}
		}
	}

	result, err := f.handler(ctx, args)
	if err != nil {
		return "", &ExecutionError{Tool: f.descriptor.Name, Cause: err}
	}
	return result, nil
}

// reflectSchema generates a JSON schema map for T using struct tags.
func reflectSchema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	delete(result, "$schema")
	delete(result, "$id")
	return result, nil
}
