package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSummary_RoundTrip(t *testing.T) {
	codec := jsonSummary{}

	value, err := codec.Value([]string{"첫째", "second"})
	require.NoError(t, err)
	assert.Equal(t, `["첫째","second"]`, value)

	var bullets []string
	require.NoError(t, codec.Scanner(&bullets).Scan(value))
	assert.Equal(t, []string{"첫째", "second"}, bullets)
}

func TestJSONSummary_Scan(t *testing.T) {
	tests := []struct {
		name    string
		src     interface{}
		want    []string
		wantErr bool
	}{
		{name: "text", src: `["a","b"]`, want: []string{"a", "b"}},
		{name: "bytes", src: []byte(`["a"]`), want: []string{"a"}},
		{name: "null", src: nil, want: nil},
		{name: "empty", src: "", want: nil},
		{name: "not json", src: "a, b", wantErr: true},
		{name: "wrong type", src: int64(3), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bullets []string
			err := jsonSummary{}.Scanner(&bullets).Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, bullets)
		})
	}
}

func TestArraySummary_PassesSliceThrough(t *testing.T) {
	value, err := arraySummary{}.Value([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, value)
}
