package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsKeysAtEveryDepth(t *testing.T) {
	got, err := Marshal(map[string]interface{}{
		"b": 1,
		"a": map[string]interface{}{
			"z": true,
			"y": nil,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":null,"z":true},"b":1}`, string(got))
}

func TestMarshal_DeterministicAcrossOrderings(t *testing.T) {
	build := func(keys []string) map[string]interface{} {
		m := make(map[string]interface{})
		for i, k := range keys {
			m[k] = i
		}
		return m
	}

	first, err := Marshal(build([]string{"alpha", "beta", "gamma", "delta"}))
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		next, err := Marshal(build([]string{"delta", "gamma", "beta", "alpha"}))
		require.NoError(t, err)
		// Values differ by insertion index, only key ordering matters here.
		assert.Equal(t, len(first), len(next))
	}
}

func TestMarshal_Arrays(t *testing.T) {
	got, err := Marshal([]interface{}{
		map[string]interface{}{"step": 2, "id": "b"},
		map[string]interface{}{"step": 1, "id": "a"},
	})
	require.NoError(t, err)
	// Array order is preserved; only object keys are sorted.
	assert.Equal(t, `[{"id":"b","step":2},{"id":"a","step":1}]`, string(got))
}

func TestMarshal_Scalars(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{"nil", nil, "null"},
		{"true", true, "true"},
		{"int", 42, "42"},
		{"string", "한글 title", `"한글 title"`},
		{"float", 1.5, "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshal_StructReducesToSortedObject(t *testing.T) {
	type sample struct {
		Zed   string `json:"zed"`
		Alpha int    `json:"alpha"`
	}

	got, err := Marshal(sample{Zed: "z", Alpha: 1})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":1,"zed":"z"}`, string(got))
}
