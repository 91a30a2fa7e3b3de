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
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTool struct {
	descriptor Descriptor
	result     string
}

func (s *staticTool) Descriptor() Descriptor { return s.descriptor }
func (s *staticTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	return s.result, nil
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&staticTool{descriptor: Descriptor{Name: "eval"}}))

	err := r.Register(&staticTool{descriptor: Descriptor{Name: "eval"}})
	assert.Error(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestRegistryDescriptorsSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&staticTool{descriptor: Descriptor{Name: "zeta"}}))
	require.NoError(t, r.Register(&staticTool{descriptor: Descriptor{Name: "alpha"}}))

	descriptors := r.Descriptors()
	require.Len(t, descriptors, 2)
	assert.Equal(t, "alpha", descriptors[0].Name)
	assert.Equal(t, "zeta", descriptors[1].Name)
}

func TestParseParamTypePrimitives(t *testing.T) {
	tests := []struct {
		name   string
		schema map[string]any
		want   ParamKind
	}{
		{"string", map[string]any{"type": "string"}, KindString},
		{"integer", map[string]any{"type": "integer"}, KindInteger},
		{"number", map[string]any{"type": "number"}, KindFloat},
		{"boolean", map[string]any{"type": "boolean"}, KindBoolean},
		{"null", map[string]any{"type": "null"}, KindNull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParamType(tt.schema, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestParseParamTypeEnumWithoutType(t *testing.T) {
	got, err := ParseParamType(map[string]any{"enum": []any{"red", "green"}}, 0)
	require.NoError(t, err)
	assert.Equal(t, KindEnum, got.Kind)
	assert.Equal(t, []string{"red", "green"}, got.EnumValues)
}

func TestParseParamTypeMissingType(t *testing.T) {
	_, err := ParseParamType(map[string]any{"description": "anything"}, 0)
	assert.ErrorContains(t, err, "type is required")
}

func TestParseParamTypeUnsupported(t *testing.T) {
	_, err := ParseParamType(map[string]any{"type": "tuple"}, 0)
	assert.ErrorContains(t, err, "Unsupported parameter type")
}

func TestParseParamTypeArrayRequiresItems(t *testing.T) {
	_, err := ParseParamType(map[string]any{"type": "array"}, 0)
	assert.ErrorContains(t, err, "items")

	got, err := ParseParamType(map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "integer"},
	}, 0)
	require.NoError(t, err)
	require.NotNil(t, got.Item)
	assert.Equal(t, KindInteger, got.Item.Kind)
}

func TestParseParamTypeNullableCollapse(t *testing.T) {
	got, err := ParseParamType(map[string]any{
		"anyOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "null"},
		},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, KindString, got.Kind)
	assert.True(t, got.Nullable)
}

func TestParseParamTypeAnyOfPreserved(t *testing.T) {
	got, err := ParseParamType(map[string]any{
		"anyOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "integer"},
			map[string]any{"type": "null"},
		},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, KindAnyOf, got.Kind)
	assert.Len(t, got.Variants, 2)
	assert.True(t, got.Nullable)
}

func TestParseParamTypeObject(t *testing.T) {
	got, err := ParseParamType(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"age":  map[string]any{"type": "integer"},
		},
		"required":             []any{"name"},
		"additionalProperties": false,
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, KindObject, got.Kind)
	assert.Equal(t, []string{"name"}, got.RequiredNames)
	require.NotNil(t, got.Additional)
	assert.False(t, got.Additional.Allowed)
}

func TestParseParamTypeAdditionalPropertiesSchema(t *testing.T) {
	got, err := ParseParamType(map[string]any{
		"type":                 "object",
		"additionalProperties": map[string]any{"type": "string"},
	}, 0)
	require.NoError(t, err)
	require.NotNil(t, got.Additional)
	require.NotNil(t, got.Additional.Schema)
	assert.Equal(t, KindString, got.Additional.Schema.Kind)
}

func TestParseParamTypeDepthLimit(t *testing.T) {
	// Build a schema nested beyond the depth limit.
	schema := map[string]any{"type": "string"}
	for i := 0; i < maxSchemaDepth+2; i++ {
		schema = map[string]any{"type": "array", "items": schema}
	}
	_, err := ParseParamType(schema, 0)
	assert.ErrorContains(t, err, "circular reference")
}

func TestDescriptorFromSchemaSplitsRequired(t *testing.T) {
	d, err := DescriptorFromSchema("search", "search things", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "what to find"},
			"limit": map[string]any{"type": "integer"},
		},
		"required": []any{"query"},
	})
	require.NoError(t, err)
	require.Len(t, d.RequiredParams, 1)
	require.Len(t, d.OptionalParams, 1)
	assert.Equal(t, "query", d.RequiredParams[0].Name)
	assert.Equal(t, "what to find", d.RequiredParams[0].Description)
	assert.Equal(t, "limit", d.OptionalParams[0].Name)
}

func TestDescriptorToSchema(t *testing.T) {
	d := Descriptor{
		Name:        "eval",
		Description: "evaluate an expression",
		RequiredParams: []Param{
			{Name: "expr", Description: "expression", Type: StringType()},
		},
		OptionalParams: []Param{
			{Name: "precision", Type: IntegerType()},
		},
	}

	schema := d.ToSchema()
	assert.Equal(t, "object", schema["type"])
	properties := schema["properties"].(map[string]any)
	assert.Contains(t, properties, "expr")
	assert.Contains(t, properties, "precision")
	assert.Equal(t, []any{"expr"}, schema["required"])
}

type evalArgs struct {
	Expr string `json:"expr" jsonschema:"required,description=Expression to evaluate"`
}

func TestFuncToolExecute(t *testing.T) {
	f, err := NewFunc("eval", "evaluate", func(ctx context.Context, args evalArgs) (string, error) {
		if args.Expr == "2+2" {
			return "4", nil
		}
		return "", fmt.Errorf("cannot evaluate %q", args.Expr)
	})
	require.NoError(t, err)

	d := f.Descriptor()
	assert.Equal(t, "eval", d.Name)
	require.Len(t, d.RequiredParams, 1)
	assert.Equal(t, "expr", d.RequiredParams[0].Name)

	result, err := f.Execute(context.Background(), `{"expr":"2+2"}`)
	require.NoError(t, err)
	assert.Equal(t, "4", result)
}

func TestFuncToolValidationError(t *testing.T) {
	f, err := NewFunc("eval", "evaluate", func(ctx context.Context, args evalArgs) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	_, err = f.Execute(context.Background(), `{"unknown_field":true}`)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "eval", validationErr.Tool)
}

func TestFuncToolExecutionError(t *testing.T) {
	cause := errors.New("backend down")
	f, err := NewFunc("eval", "evaluate", func(ctx context.Context, args evalArgs) (string, error) {
		return "", cause
	})
	require.NoError(t, err)

	_, err = f.Execute(context.Background(), `{"expr":"1"}`)
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.ErrorIs(t, execErr, cause)
}
