package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type encoder interface {
	Encode(v interface{}) error
}

func newEncoder(format string, w io.Writer) (encoder, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc, nil
	case "yaml", "":
		return &yamlEncoder{w: w}, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// yamlEncoder routes values through JSON so field names and omitempty follow
// the json tags, and decodes into a yaml.Node to keep the field order.
type yamlEncoder struct {
	w io.Writer
}

func (e *yamlEncoder) Encode(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	blockStyle(&node)
	enc := yaml.NewEncoder(e.w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

// blockStyle clears the flow and quoting styles that JSON input leaves on
// every node.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
