package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexString_Decode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want FlexString
	}{
		{"string", `"1992"`, "1992"},
		{"integer", `1992`, "1992"},
		{"float", `1992.5`, "1992.5"},
		{"bool", `true`, "true"},
		{"null", `null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got FlexString
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	var got FlexString
	assert.Error(t, json.Unmarshal([]byte(`{"y":1}`), &got))
}

func TestFlexString_EncodesAsString(t *testing.T) {
	var entry TimelineEntry
	require.NoError(t, json.Unmarshal([]byte(`{"type":"song","title":"Creep","year":1992}`), &entry))

	out, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"year":"1992"`)
}
