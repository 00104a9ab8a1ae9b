package joblist

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// Record is one entry of the structured job list.
type Record struct {
	ID      int
	Command string
	Time    string

	// MarkerField and MarkerValue are set when the normalizer extracted a
	// marker variable from the command.
	MarkerField string
	MarkerValue string
}

// MarshalYAML emits the keys in a fixed order: id, command, time, then the
// marker field.
func (r Record) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, value *yaml.Node) {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
	}
	add("id", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(r.ID)})
	add("command", strNode(r.Command))
	add("time", strNode(r.Time))
	if r.MarkerField != "" {
		add(r.MarkerField, strNode(r.MarkerValue))
	}
	return node, nil
}

// UnmarshalYAML accepts the layout written by MarshalYAML. Any key other
// than id, command and time is taken as the marker field.
func (r *Record) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*r = Record{}
	for k, v := range raw {
		switch k {
		case "id":
			if n, ok := v.(int); ok {
				r.ID = n
			}
		case "command":
			r.Command, _ = v.(string)
		case "time":
			r.Time, _ = v.(string)
		default:
			r.MarkerField = k
			r.MarkerValue, _ = v.(string)
		}
	}
	return nil
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
