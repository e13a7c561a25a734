package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValues(t *testing.T) {
	tests := []struct {
		name    string
		desired any
		actual  any
		dExists bool
		aExists bool
		opts    Options
		want    bool
	}{
		{"both absent", nil, nil, false, false, Options{}, true},
		{"desired absent actual empty slice", nil, []string{}, false, true, Options{}, true},
		{"desired absent actual set", nil, "x", false, true, Options{}, false},
		{"actual absent desired empty map", map[string]string{}, nil, true, false, Options{}, true},
		{"equal strings", "gp3", "gp3", true, true, Options{}, true},
		{"case sensitive mismatch", "GP3", "gp3", true, true, Options{}, false},
		{"case insensitive match", "GP3", "gp3", true, true, Options{CaseInsensitive: true}, true},
		{"int vs int64", 100, int64(100), true, true, Options{}, true},
		{"int vs float64", 100, float64(100), true, true, Options{}, true},
		{"numeric string vs int", "3000", 3000, true, true, Options{}, true},
		{"numbers differ", 100, 200, true, true, Options{}, false},
		{"bool vs string bool", true, "true", true, true, Options{}, true},
		{"equal slices", []string{"a", "b"}, []string{"a", "b"}, true, true, Options{}, true},
		{"slice order matters", []string{"a", "b"}, []string{"b", "a"}, true, true, Options{}, false},
		{"equal maps", map[string]string{"k": "v"}, map[string]any{"k": "v"}, true, true, Options{}, true},
		{"map value differs", map[string]string{"k": "v"}, map[string]any{"k": "w"}, true, true, Options{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Values(tc.desired, tc.actual, tc.dExists, tc.aExists, tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSets(t *testing.T) {
	assert.True(t, Sets([]string{"a", "b"}, []string{"b", "a"}))
	assert.True(t, Sets([]string{"a", "a", "b"}, []string{"b", "a"}))
	assert.True(t, Sets(nil, []string{}))
	assert.False(t, Sets([]string{"a"}, []string{"a", "b"}))
}

func TestTreesEqual(t *testing.T) {
	assert.True(t, TreesEqual(
		map[string]any{"tags": map[string]any{}},
		map[string]any{"tags": nil},
	))
	assert.False(t, TreesEqual(
		map[string]any{"size": 10},
		map[string]any{"size": 20},
	))
}
