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
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
)

// maxSchemaDepth bounds recursion while parsing nested schemas. Schemas
// nesting deeper are treated as circular.
const maxSchemaDepth = 30

// SchemaGenerationError reports a schema that could not be parsed or
// generated: unsupported types, missing fields, recursion beyond the limit.
type SchemaGenerationError struct {
	Reason string
}

func (e *SchemaGenerationError) Error() string {
	return "schema generation failed: " + e.Reason
}

// FromMCP converts an MCP tool definition into a Descriptor, parsing its
// input schema into the typed parameter tree.
func FromMCP(t mcp.Tool) (Descriptor, error) {
	data, err := json.Marshal(t.InputSchema)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to encode input schema for %q: %w", t.Name, err)
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return Descriptor{}, fmt.Errorf("failed to decode input schema for %q: %w", t.Name, err)
	}
	return DescriptorFromSchema(t.Name, t.Description, schema)
}

// DescriptorFromSchema parses an MCP-style JSON schema object into a
// Descriptor, splitting properties into required and optional parameters.
func DescriptorFromSchema(name, description string, schema map[string]any) (Descriptor, error) {
	d := Descriptor{Name: name, Description: description}
	if schema == nil {
		return d, nil
	}

	properties, _ := schema["properties"].(map[string]any)
	requiredSet := requiredNameSet(schema["required"])

	propNames := make([]string, 0, len(properties))
	for propName := range properties {
		propNames = append(propNames, propName)
	}
	sort.Strings(propNames)

	for _, propName := range propNames {
		propSchema, ok := properties[propName].(map[string]any)
		if !ok {
			return Descriptor{}, fmt.Errorf("property %q of %q is not a schema object", propName, name)
		}
		paramType, err := ParseParamType(propSchema, 0)
		if err != nil {
			return Descriptor{}, fmt.Errorf("property %q of %q: %w", propName, name, err)
		}
		desc, _ := propSchema["description"].(string)
		param := Param{Name: propName, Description: desc, Type: paramType}
		if requiredSet[propName] {
			d.RequiredParams = append(d.RequiredParams, param)
		} else {
			d.OptionalParams = append(d.OptionalParams, param)
		}
	}
	return d, nil
}

// ParseParamType parses one schema node into a ParamType.
//
// Rules: anyOf of one type plus null collapses to the nullable type; enum
// without an explicit type is a string enum; otherwise type is required;
// arrays require items; unions with multiple non-null branches are preserved.
func ParseParamType(schema map[string]any, depth int) (ParamType, error) {
	if depth > maxSchemaDepth {
		return ParamType{}, &SchemaGenerationError{Reason: fmt.Sprintf("circular reference: schema exceeds depth %d", maxSchemaDepth)}
	}

	if anyOf, ok := schema["anyOf"].([]any); ok {
		return parseAnyOf(anyOf, depth)
	}

	typeName, hasType := schema["type"].(string)

	// An enum without an explicit type is treated as a string enum.
	if enum, ok := schema["enum"].([]any); ok && !hasType {
		return EnumType(enumStrings(enum)...), nil
	}
	if !hasType {
		return ParamType{}, &SchemaGenerationError{Reason: "parameter type is required"}
	}

	switch typeName {
	case "string":
		if enum, ok := schema["enum"].([]any); ok {
			return EnumType(enumStrings(enum)...), nil
		}
		return StringType(), nil
	case "integer":
		return IntegerType(), nil
	case "number":
		return FloatType(), nil
	case "boolean":
		return BooleanType(), nil
	case "null":
		return NullType(), nil
	case "array":
		items, ok := schema["items"].(map[string]any)
		if !ok {
			return ParamType{}, fmt.Errorf("array type requires items")
		}
		item, err := ParseParamType(items, depth+1)
		if err != nil {
			return ParamType{}, err
		}
		return ListType(item), nil
	case "object":
		return parseObject(schema, depth)
	default:
		return ParamType{}, &SchemaGenerationError{Reason: "Unsupported parameter type: " + typeName}
	}
}

func parseObject(schema map[string]any, depth int) (ParamType, error) {
	result := ParamType{Kind: KindObject, Properties: make(map[string]ParamType)}

	if properties, ok := schema["properties"].(map[string]any); ok {
		for name, raw := range properties {
			propSchema, ok := raw.(map[string]any)
			if !ok {
				return ParamType{}, fmt.Errorf("property %q is not a schema object", name)
			}
			propType, err := ParseParamType(propSchema, depth+1)
			if err != nil {
				return ParamType{}, err
			}
			result.Properties[name] = propType
		}
	}

	for name := range requiredNameSet(schema["required"]) {
		result.RequiredNames = append(result.RequiredNames, name)
	}
	sort.Strings(result.RequiredNames)

	switch additional := schema["additionalProperties"].(type) {
	case bool:
		result.Additional = &AdditionalProperties{Allowed: additional}
	case map[string]any:
		extraType, err := ParseParamType(additional, depth+1)
		if err != nil {
			return ParamType{}, err
		}
		result.Additional = &AdditionalProperties{Allowed: true, Schema: &extraType}
	}

	return result, nil
}

func parseAnyOf(anyOf []any, depth int) (ParamType, error) {
	var variants []ParamType
	sawNull := false

	for _, raw := range anyOf {
		branch, ok := raw.(map[string]any)
		if !ok {
			return ParamType{}, fmt.Errorf("anyOf branch is not a schema object")
		}
		variant, err := ParseParamType(branch, depth+1)
		if err != nil {
			return ParamType{}, err
		}
		if variant.Kind == KindNull {
			sawNull = true
			continue
		}
		variants = append(variants, variant)
	}

	switch len(variants) {
	case 0:
		return NullType(), nil
	case 1:
		// anyOf [T, null] collapses to nullable T.
		v := variants[0]
		v.Nullable = v.Nullable || sawNull
		return v, nil
	default:
		// Multiple non-null branches are preserved as-is.
		return ParamType{Kind: KindAnyOf, Variants: variants, Nullable: sawNull}, nil
	}
}

func requiredNameSet(raw any) map[string]bool {
	set := make(map[string]bool)
	switch names := raw.(type) {
	case []any:
		for _, n := range names {
			if s, ok := n.(string); ok {
				set[s] = true
			}
		}
	case []string:
		for _, s := range names {
			set[s] = true
		}
	}
	return set
}

func enumStrings(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, fmt.Sprintf("%v", v))
	}
	return out
}
