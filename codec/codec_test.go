package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	c, ok = ByName("go-json")
	require.True(t, ok)
	assert.Equal(t, "go-json", c.Name())

	_, ok = ByName("msgpack")
	assert.False(t, ok)
}

func TestCodecsAgree(t *testing.T) {
	payload := benchPayload()

	stdlib := MustMarshal(JSON{}, payload)
	goccy := MustMarshal(GoJSON{}, payload)

	// Either codec must decode the other's output.
	var a, b benchDescriptor
	require.NoError(t, JSON{}.Unmarshal(goccy, &a))
	require.NoError(t, GoJSON{}.Unmarshal(stdlib, &b))

	assert.Equal(t, payload, a)
	assert.Equal(t, payload, b)
}

func TestMarshalIndent(t *testing.T) {
	for _, c := range []Codec{JSON{}, GoJSON{}} {
		out, err := c.MarshalIndent(map[string]int{"a": 1}, "", "  ")
		require.NoError(t, err)
		assert.Contains(t, string(out), "\n  \"a\": 1")
	}
}

func TestMustMarshalDefault(t *testing.T) {
	out := MustMarshal(nil, map[string]string{"k": "v"})
	assert.JSONEq(t, `{"k":"v"}`, string(out))
}
