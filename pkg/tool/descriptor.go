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

// Param is one named tool parameter.
type Param struct {
	Name        string
	Description string
	Type        ParamType
}

// Descriptor is the provider-facing metadata of a tool.
type Descriptor struct {
	Name           string
	Description    string
	RequiredParams []Param
	OptionalParams []Param
}

// ToSchema renders the descriptor's parameters as a JSON schema object,
// the form consumed by LLM function-calling APIs.
func (d Descriptor) ToSchema() map[string]any {
	properties := make(map[string]any, len(d.RequiredParams)+len(d.OptionalParams))
	required := make([]any, 0, len(d.RequiredParams))

	for _, p := range d.RequiredParams {
		schema := p.Type.ToSchema()
		if p.Description != "" {
			schema["description"] = p.Description
		}
		properties[p.Name] = schema
		required = append(required, p.Name)
	}
	for _, p := range d.OptionalParams {
		schema := p.Type.ToSchema()
		if p.Description != "" {
			schema["description"] = p.Description
		}
		properties[p.Name] = schema
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
