package tree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument is returned when a JSON document is not a keyed tree.
var ErrInvalidDocument = errors.New("invalid tree document")

// MarshalJSON encodes the file as {"name": <name>}.
func (f *File) MarshalJSON() ([]byte, error) {
	name, err := json.Marshal(f.name)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(`{"name":`), name...), '}'), nil
}

// MarshalJSON encodes the directory as an object keyed by child name. Keys
// keep listing order.
func (d *Directory) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, node := range d.nodes {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(node.Name())
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(node)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML encodes the file as a mapping with a single name key.
func (f *File) MarshalYAML() (any, error) {
	return yamlNode(f), nil
}

// MarshalYAML encodes the directory as a mapping keyed by child name, in
// listing order.
func (d *Directory) MarshalYAML() (any, error) {
	return yamlNode(d), nil
}

func yamlNode(n Node) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}

	dir, ok := n.(*Directory)
	if !ok {
		m.Content = append(m.Content, yamlString("name"), yamlString(n.Name()))
		return m
	}

	for _, child := range dir.nodes {
		m.Content = append(m.Content, yamlString(child.Name()), yamlNode(child))
	}
	return m
}

// yamlString is always emitted as a string, so names like "true" or "123"
// survive a round trip.
func yamlString(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// ParseJSON decodes a document produced by json.Marshal on a Directory.
// The returned root is named ".". An object whose only key is "name" with
// a string value is a file; any other object is a directory.
func ParseJSON(data []byte) (*Directory, error) {
	value, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if dataType != jsonparser.Object {
		return nil, fmt.Errorf("%w: root is %s, not an object", ErrInvalidDocument, dataType)
	}

	root := NewDirectory(".")
	if err := parseObject(root, value); err != nil {
		return nil, err
	}
	return root, nil
}

func parseObject(dir *Directory, data []byte) error {
	return jsonparser.ObjectEach(data, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		name := string(key)
		if dataType != jsonparser.Object {
			return fmt.Errorf("%w: %q is %s, not an object", ErrInvalidDocument, name, dataType)
		}

		if fileName, ok := fileObject(value); ok {
			dir.Add(NewFile(fileName))
			return nil
		}

		child := NewDirectory(name)
		if err := parseObject(child, value); err != nil {
			return err
		}
		dir.Add(child)
		return nil
	})
}

// fileObject reports whether data is {"name": "<string>"} and returns the
// name.
func fileObject(data []byte) (string, bool) {
	keys := 0
	name, isString := "", false
	err := jsonparser.ObjectEach(data, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		keys++
		if string(key) != "name" || dataType != jsonparser.String {
			return nil
		}
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return err
		}
		name, isString = s, true
		return nil
	})
	if err != nil || keys != 1 || !isString {
		return "", false
	}
	return name, true
}

// JSONNames returns the same paths Names would return for the tree encoded
// in data.
func JSONNames(data []byte) ([]string, error) {
	root, err := ParseJSON(data)
	if err != nil {
		return nil, err
	}
	return Names(root), nil
}
