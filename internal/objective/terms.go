package objective

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Kind names a term type in persisted records
type Kind string

const (
	KindQuantum             Kind = "QuantumObjective"
	KindUnitaryInfidelity   Kind = "UnitaryInfidelityObjective"
	KindQuadratic           Kind = "QuadraticRegularizer"
	KindQuadraticSmoothness Kind = "QuadraticSmoothnessRegularizer"
	KindL1                  Kind = "L1Regularizer"
	KindMinimumTime         Kind = "MinimumTimeObjective"
	KindRobustness          Kind = "InfidelityRobustnessObjective"
)

// Params is the typed parameter record of one term. Building it against a
// layout yields the term's Objective.
type Params interface {
	Kind() Kind
	Build(l Layout) (*Objective, error)
}

// Terms is an ordered list of term records. It encodes to JSON and YAML as a
// list of objects of the form {type: <kind>, ...parameters}.
type Terms []Params

// Build rebuilds every term against the layout and sums them
func (ts Terms) Build(l Layout) (*Objective, error) {
	var out *Objective
	for i, p := range ts {
		o, err := p.Build(l)
		if err != nil {
			return nil, fmt.Errorf("failed to build term %d (%s): %w", i, p.Kind(), err)
		}
		out = Add(out, o)
	}
	return out, nil
}

// Rebuild reconstructs an objective from persisted records
func Rebuild(l Layout, records Terms) (*Objective, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no objective terms to rebuild")
	}
	return records.Build(l)
}

// decoder fills a typed record using the supplied unmarshal function
type decoder func(unmarshal func(any) error) (Params, error)

func decodeAs[P Params](unmarshal func(any) error) (Params, error) {
	var p P
	if err := unmarshal(&p); err != nil {
		return nil, err
	}
	return p, nil
}

var registry = map[Kind]decoder{}

// register adds a term kind. Registering a kind twice is a programming error.
func register(kind Kind, d decoder) {
	if _, dup := registry[kind]; dup {
		panic(fmt.Sprintf("objective term %q registered twice", kind))
	}
	registry[kind] = d
}

func init() {
	register(KindQuantum, decodeAs[QuantumParams])
	register(KindUnitaryInfidelity, decodeAs[UnitaryInfidelityParams])
	register(KindQuadratic, decodeAs[QuadraticParams])
	register(KindQuadraticSmoothness, decodeAs[SmoothnessParams])
	register(KindL1, decodeAs[L1Params])
	register(KindMinimumTime, decodeAs[MinimumTimeParams])
	register(KindRobustness, decodeAs[RobustnessParams])
}

// Kinds lists the registered term kinds
func Kinds() []Kind {
	out := make([]Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func lookup(kind Kind) (decoder, error) {
	if kind == "" {
		return nil, fmt.Errorf("term record has no type")
	}
	d, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown term type %q", kind)
	}
	return d, nil
}

type header struct {
	Type Kind `json:"type" yaml:"type"`
}

// MarshalJSON writes each record as its parameters plus a type field
func (ts Terms) MarshalJSON() ([]byte, error) {
	out := make([]map[string]json.RawMessage, len(ts))
	for i, p := range ts {
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to encode term %d: %w", i, err)
		}
		fields := map[string]json.RawMessage{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("failed to encode term %d: %w", i, err)
		}
		kind, _ := json.Marshal(p.Kind())
		fields["type"] = kind
		out[i] = fields
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes records through the term registry
func (ts *Terms) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(Terms, 0, len(raws))
	for i, raw := range raws {
		var h header
		if err := json.Unmarshal(raw, &h); err != nil {
			return fmt.Errorf("term %d: %w", i, err)
		}
		d, err := lookup(h.Type)
		if err != nil {
			return fmt.Errorf("term %d: %w", i, err)
		}
		p, err := d(strictJSON(raw))
		if err != nil {
			return fmt.Errorf("term %d (%s): %w", i, h.Type, err)
		}
		out = append(out, p)
	}
	*ts = out
	return nil
}

// MarshalYAML writes each record as a mapping with the type key first
func (ts Terms) MarshalYAML() (any, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for i, p := range ts {
		var fields yaml.Node
		if err := fields.Encode(p); err != nil {
			return nil, fmt.Errorf("failed to encode term %d: %w", i, err)
		}
		node := &yaml.Node{Kind: yaml.MappingNode}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: "type"},
			&yaml.Node{Kind: yaml.ScalarNode, Value: string(p.Kind())},
		)
		node.Content = append(node.Content, fields.Content...)
		seq.Content = append(seq.Content, node)
	}
	return seq, nil
}

// UnmarshalYAML decodes records through the term registry
func (ts *Terms) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: objective terms must be a list", value.Line)
	}
	out := make(Terms, 0, len(value.Content))
	for i, node := range value.Content {
		if node.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: term %d must be a mapping", node.Line, i)
		}
		var h header
		if err := node.Decode(&h); err != nil {
			return fmt.Errorf("term %d: %w", i, err)
		}
		d, err := lookup(h.Type)
		if err != nil {
			return fmt.Errorf("line %d: term %d: %w", node.Line, i, err)
		}
		p, err := d(strictYAML(node))
		if err != nil {
			return fmt.Errorf("line %d: term %d (%s): %w", node.Line, i, h.Type, err)
		}
		out = append(out, p)
	}
	*ts = out
	return nil
}

// strictJSON decodes the parameters of a record, rejecting keys the term
// does not define.
func strictJSON(raw json.RawMessage) func(any) error {
	return func(v any) error {
		fields := map[string]json.RawMessage{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return err
		}
		delete(fields, "type")
		body, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		return dec.Decode(v)
	}
}

// strictYAML is the YAML counterpart of strictJSON
func strictYAML(node *yaml.Node) func(any) error {
	return func(v any) error {
		body := &yaml.Node{Kind: yaml.MappingNode}
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "type" {
				continue
			}
			body.Content = append(body.Content, node.Content[i], node.Content[i+1])
		}
		data, err := yaml.Marshal(body)
		if err != nil {
			return err
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		return dec.Decode(v)
	}
}
