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

// Package tool defines tool descriptors, the tool registry and the typed
// parameter model agents use for LLM function calling.
//
// Parameter types form a tagged sum mirroring JSON schema: primitives,
// enums, lists, objects and anyOf unions, nesting with a hard depth limit.
package tool

import (
	"fmt"
	"sort"
)

// ParamKind discriminates parameter types.
type ParamKind string

const (
	KindString  ParamKind = "string"
	KindInteger ParamKind = "integer"
	KindFloat   ParamKind = "number"
	KindBoolean ParamKind = "boolean"
	KindNull    ParamKind = "null"
	KindEnum    ParamKind = "enum"
	KindList    ParamKind = "array"
	KindObject  ParamKind = "object"
	KindAnyOf   ParamKind = "anyOf"
)

// AdditionalProperties captures a JSON schema additionalProperties clause:
// either a plain boolean or a nested schema for extra keys.
type AdditionalProperties struct {
	Allowed bool
	Schema  *ParamType
}

// ParamType is a tagged parameter type. Exactly the fields relevant to Kind
// are set.
type ParamType struct {
	Kind ParamKind

	// Nullable marks a type that accepted null in an anyOf union.
	Nullable bool

	// EnumValues holds the allowed values for KindEnum.
	EnumValues []string

	// Item is the element type for KindList.
	Item *ParamType

	// Properties, RequiredNames and Additional describe KindObject.
	Properties    map[string]ParamType
	RequiredNames []string
	Additional    *AdditionalProperties

	// Variants holds the branches for KindAnyOf.
	Variants []ParamType
}

// StringType and friends are convenience constructors.
func StringType() ParamType  { return ParamType{Kind: KindString} }
func IntegerType() ParamType { return ParamType{Kind: KindInteger} }
func FloatType() ParamType   { return ParamType{Kind: KindFloat} }
func BooleanType() ParamType { return ParamType{Kind: KindBoolean} }
func NullType() ParamType    { return ParamType{Kind: KindNull} }

// EnumType creates a string enum type.
func EnumType(values ...string) ParamType {
	return ParamType{Kind: KindEnum, EnumValues: values}
}

// ListType creates an array type.
func ListType(item ParamType) ParamType {
	return ParamType{Kind: KindList, Item: &item}
}

// ObjectType creates an object type.
func ObjectType(properties map[string]ParamType, required []string) ParamType {
	return ParamType{Kind: KindObject, Properties: properties, RequiredNames: required}
}

// AnyOfType creates a union type.
func AnyOfType(variants ...ParamType) ParamType {
	return ParamType{Kind: KindAnyOf, Variants: variants}
}

// ToSchema renders the type as a JSON schema fragment.
func (t ParamType) ToSchema() map[string]any {
	switch t.Kind {
	case KindString, KindInteger, KindFloat, KindBoolean, KindNull:
		return map[string]any{"type": string(t.Kind)}
	case KindEnum:
		return map[string]any{"type": "string", "enum": toAnySlice(t.EnumValues)}
	case KindList:
		schema := map[string]any{"type": "array"}
		if t.Item != nil {
			schema["items"] = t.Item.ToSchema()
		}
		return schema
	case KindObject:
		properties := make(map[string]any, len(t.Properties))
		names := make([]string, 0, len(t.Properties))
		for name := range t.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			properties[name] = t.Properties[name].ToSchema()
		}
		schema := map[string]any{"type": "object", "properties": properties}
		if len(t.RequiredNames) > 0 {
			schema["required"] = toAnySlice(t.RequiredNames)
		}
		if t.Additional != nil {
			if t.Additional.Schema != nil {
				schema["additionalProperties"] = t.Additional.Schema.ToSchema()
			} else {
				schema["additionalProperties"] = t.Additional.Allowed
			}
		}
		return schema
	case KindAnyOf:
		variants := make([]any, len(t.Variants))
		for i, v := range t.Variants {
			variants[i] = v.ToSchema()
		}
		return map[string]any{"anyOf": variants}
	default:
		return map[string]any{}
	}
}

// String renders a compact human-readable form for error messages.
func (t ParamType) String() string {
	switch t.Kind {
	case KindEnum:
		return fmt.Sprintf("enum%v", t.EnumValues)
	case KindList:
		if t.Item == nil {
			return "array"
		}
		return fmt.Sprintf("array<%s>", t.Item.String())
	case KindAnyOf:
		return fmt.Sprintf("anyOf(%d)", len(t.Variants))
	default:
		return string(t.Kind)
	}
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
