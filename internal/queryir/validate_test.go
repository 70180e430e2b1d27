package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidSelect(t *testing.T) {
	query := Select{
		From:    "commands",
		Columns: []string{"seq", "kind", "action"},
		Filter: And{Predicates: []Predicate{
			Equals{Field: "run_id", Value: "run-1"},
			In{Field: "kind", Values: []any{"start", "complete"}},
			Equals{Field: "progress", Value: 0.5},
		}},
	}

	result := Validate(query)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	// Pointers validate the same way.
	assert.True(t, Validate(&query).Valid)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr string
	}{
		{
			name:    "nil query",
			query:   nil,
			wantErr: "nil query",
		},
		{
			name:    "nil select pointer",
			query:   (*Select)(nil),
			wantErr: "nil query",
		},
		{
			name:    "unknown table",
			query:   Select{From: "runs; DROP TABLE runs", Columns: []string{"id"}},
			wantErr: `unknown table "runs; DROP TABLE runs"`,
		},
		{
			name:    "empty columns",
			query:   Select{From: "signals"},
			wantErr: "empty column list - columns must be explicit",
		},
		{
			name:    "unknown column",
			query:   Select{From: "signals", Columns: []string{"seq", "action"}},
			wantErr: `unknown column "action"`,
		},
		{
			name: "unknown filter column",
			query: Select{
				From:    "commands",
				Columns: []string{"seq"},
				Filter:  Equals{Field: "type", Value: "x"},
			},
			wantErr: `unknown column "type"`,
		},
		{
			name: "non-scalar value",
			query: Select{
				From:    "commands",
				Columns: []string{"seq"},
				Filter:  Equals{Field: "params", Value: map[string]any{"a": 1}},
			},
			wantErr: `column "params": value map[a:1] (map[string]interface {}) is not a scalar`,
		},
		{
			name: "empty IN",
			query: Select{
				From:    "commands",
				Columns: []string{"seq"},
				Filter:  And{Predicates: []Predicate{In{Field: "kind"}}},
			},
			wantErr: `column "kind": empty IN set`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query)
			assert.False(t, result.Valid)
			require.NotEmpty(t, result.Errors)
			assert.Contains(t, result.Errors, tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	result := Validate(Select{
		From:    "commands",
		Columns: []string{"nope"},
		Filter: And{Predicates: []Predicate{
			Equals{Field: "missing", Value: 1},
			In{Field: "kind", Values: []any{[]any{"start"}}},
		}},
	})

	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 3)
}

func TestAllOf(t *testing.T) {
	a := Equals{Field: "action", Value: "move"}
	b := Equals{Field: "kind", Value: "start"}

	assert.Nil(t, AllOf())
	assert.Nil(t, AllOf(nil, nil))
	assert.Equal(t, a, AllOf(nil, a))
	assert.Equal(t, And{Predicates: []Predicate{a, b}}, AllOf(a, nil, b))
}

func TestIsScalar(t *testing.T) {
	for _, v := range []any{"s", true, 1, int64(2), uint8(3), 1.5, float32(2)} {
		assert.True(t, IsScalar(v), "%T", v)
	}
	for _, v := range []any{nil, []any{1}, map[string]any{}, struct{}{}} {
		assert.False(t, IsScalar(v), "%T", v)
	}
}
