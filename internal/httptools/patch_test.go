package httptools_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenithhq/zenith/internal/httptools"
)

type patchBody struct {
	URL    httptools.Patch[string] `json:"url,omitzero"`
	Active httptools.Patch[bool]   `json:"is_active,omitzero"`
}

func TestPatch_AbsentField(t *testing.T) {
	var body patchBody
	require.NoError(t, json.Unmarshal([]byte(`{}`), &body))

	assert.False(t, body.URL.IsSet())
	assert.False(t, body.Active.IsSet())
}

func TestPatch_NullField(t *testing.T) {
	var body patchBody
	require.NoError(t, json.Unmarshal([]byte(`{"url": null}`), &body))

	assert.True(t, body.URL.IsSet())
	_, ok := body.URL.Value()
	assert.False(t, ok)
}

func TestPatch_SetField(t *testing.T) {
	var body patchBody
	require.NoError(t, json.Unmarshal([]byte(`{"url": "https://example.com", "is_active": false}`), &body))

	url, ok := body.URL.Value()
	assert.True(t, ok)
	assert.Equal(t, "https://example.com", url)

	active, ok := body.Active.Value()
	assert.True(t, ok)
	assert.False(t, active)
}

func TestPatch_MarshalRoundTrip(t *testing.T) {
	body := patchBody{URL: httptools.PatchValue("https://example.com"), Active: httptools.PatchNull[bool]()}

	data, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://example.com","is_active":null}`, string(data))
}
