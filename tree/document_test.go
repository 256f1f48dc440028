package tree

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMarshalJSON(t *testing.T) {
	data, err := json.Marshal(sample())
	require.NoError(t, err)

	assert.Equal(t,
		`{"docs":{"guide":{"intro.md":{"name":"intro.md"}},"readme.txt":{"name":"readme.txt"}},`+
			`"empty":{},"notes.txt":{"name":"notes.txt"}}`,
		string(data))
}

func TestMarshalJSON_Escaping(t *testing.T) {
	root := NewDirectory(".")
	root.Add(NewFile(`quote " and \ slash`))

	data, err := json.Marshal(root)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	parsed, err := ParseJSON(data)
	require.NoError(t, err)
	assert.Equal(t, []string{`quote " and \ slash`}, Names(parsed))
}

func TestMarshalYAML(t *testing.T) {
	root := NewDirectory(".")
	sub := NewDirectory("true")
	sub.Add(NewFile("123"))
	root.Add(sub, NewDirectory("empty"))

	data, err := yaml.Marshal(root)
	require.NoError(t, err)

	assert.Equal(t, "\"true\":\n    \"123\":\n        name: \"123\"\nempty: {}\n", string(data))
}

func TestParseJSON(t *testing.T) {
	data, err := json.Marshal(sample())
	require.NoError(t, err)

	root, err := ParseJSON(data)
	require.NoError(t, err)

	assert.Equal(t, ".", root.Name())
	assert.Equal(t, sample().String(), root.String())
}

func TestParseJSON_FileNamedName(t *testing.T) {
	root := NewDirectory(".")
	dir := NewDirectory("name")
	dir.Add(NewFile("name"))
	root.Add(dir)

	data, err := json.Marshal(root)
	require.NoError(t, err)

	parsed, err := ParseJSON(data)
	require.NoError(t, err)
	require.Equal(t, 1, parsed.Len())

	got, ok := parsed.Nodes()[0].(*Directory)
	require.True(t, ok, "outer entry should stay a directory")
	_, ok = got.Nodes()[0].(*File)
	assert.True(t, ok)
}

func TestParseJSON_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"Not JSON", `nope`},
		{"Array root", `[1,2]`},
		{"String child", `{"a":"b"}`},
		{"Nested string child", `{"a":{"b":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestRoundTrip_TextAndJSON(t *testing.T) {
	root := sample()

	data, err := json.Marshal(root)
	require.NoError(t, err)

	fromJSON, err := JSONNames(data)
	require.NoError(t, err)
	fromText, err := TextNames(root.String())
	require.NoError(t, err)

	assert.Equal(t, fromJSON, fromText)
	assert.ElementsMatch(t, Names(root), fromJSON)
}
