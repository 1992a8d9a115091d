package types

import (
	"fmt"
	"strings"
)

// NodeKind distinguishes the three data node variants of the dependency graph.
type NodeKind string

const (
	NodeKindTable     NodeKind = "table"
	NodeKindParam     NodeKind = "param"
	NodeKindIndicator NodeKind = "indicator"
)

// SourceKind is what a parameter reads from. A parameter may read another parameter, which
// is how forecast chains are built.
type SourceKind string

const (
	SourceKindTable     SourceKind = "table"
	SourceKindIndicator SourceKind = "indicator"
	SourceKindParam     SourceKind = "param"
)

// NodeID is the composite identity of a data node:
//
//	table:<group>.<field>
//	param:<owner>/<name>
//	indicator:<owner>/<name>
type NodeID string

// TableNodeID builds the identity of a raw upstream series.
func TableNodeID(group FieldGroup, field string) NodeID {
	return NodeID(fmt.Sprintf("%s:%s.%s", NodeKindTable, group, field))
}

// ParamNodeID builds the identity of a parameter.
func ParamNodeID(owner, name string) NodeID {
	return NodeID(fmt.Sprintf("%s:%s/%s", NodeKindParam, owner, name))
}

// IndicatorNodeID builds the identity of an indicator.
func IndicatorNodeID(owner, name string) NodeID {
	return NodeID(fmt.Sprintf("%s:%s/%s", NodeKindIndicator, owner, name))
}

// Kind returns the node kind encoded in the identity.
func (id NodeID) Kind() NodeKind {
	kind, _, _ := strings.Cut(string(id), ":")

	return NodeKind(kind)
}

func (id NodeID) String() string {
	return string(id)
}

// ParseTableSource splits a "group.field" table source id.
func ParseTableSource(source string) (FieldGroup, string, error) {
	groupName, field, ok := strings.Cut(source, ".")
	if !ok || field == "" {
		return "", "", fmt.Errorf("table source must be <group>.<field>, got %q", source)
	}

	group, err := ParseFieldGroup(groupName)
	if err != nil {
		return "", "", err
	}

	if !group.HasField(field) {
		return "", "", fmt.Errorf("field %s is not a column of %s", field, group)
	}

	return group, field, nil
}

// Ref points at a parameter or indicator definition by owner and name.
type Ref struct {
	Owner string `json:"owner" yaml:"owner"`
	Name  string `json:"name" yaml:"name" validate:"required"`
}

func (r Ref) String() string {
	if r.Owner == "" {
		return r.Name
	}

	return r.Owner + "/" + r.Name
}

// ParseRef parses "owner/name" or a bare "name".
func ParseRef(s string) Ref {
	owner, name, ok := strings.Cut(s, "/")
	if !ok {
		return Ref{Owner: "", Name: s}
	}

	return Ref{Owner: owner, Name: name}
}
