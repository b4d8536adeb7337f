// Package view projects the filtered task list into a two-level hierarchy
// and answers navigation and export queries over it.
package view

import (
	"path/filepath"

	"github.com/dshills/taskaroo/internal/task"
)

// NodeKind tags the variant of a Node.
type NodeKind int

const (
	// KindGroup is a file or tag group with children.
	KindGroup NodeKind = iota
	// KindTask wraps a single task record.
	KindTask
)

// String returns the kind name.
func (k NodeKind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindTask:
		return "task"
	default:
		return "unknown"
	}
}

// Node is a display node: either a group or a task, selected by Kind.
type Node struct {
	Kind NodeKind

	// Label is the display text: a file base name, a tag, or a task label.
	Label string

	// Key identifies the node: the full path or tag for groups, the
	// "path:line" position for tasks.
	Key string

	// Record is set for KindTask.
	Record *task.Record

	// Children is set for KindGroup.
	Children []Node
}

// GroupNode creates a group node.
func GroupNode(label, key string, children []Node) Node {
	return Node{Kind: KindGroup, Label: label, Key: key, Children: children}
}

// TaskNode creates a task node holding a copy of rec.
func TaskNode(rec task.Record) Node {
	r := rec
	return Node{Kind: KindTask, Label: r.Label(), Key: r.Position(), Record: &r}
}

// IsGroup reports whether the node is a group.
func (n Node) IsGroup() bool { return n.Kind == KindGroup }

// Tooltip returns "label\npath:line" for tasks and the key for groups.
func (n Node) Tooltip() string {
	if n.Kind == KindTask && n.Record != nil {
		return n.Label + "\n" + n.Record.Position()
	}
	return n.Key
}

// Build groups records, which must already be in view order.
//
// In file mode there is one group per distinct path, labelled with the base
// name; in tag mode one group per distinct tag. Groups appear in first-seen
// order and children keep the order of records.
func Build(records []task.Record, mode task.GroupBy) []Node {
	index := make(map[string]int)
	var groups []Node

	for _, rec := range records {
		key, label := rec.Location.Path, filepath.Base(rec.Location.Path)
		if mode == task.GroupByTag {
			key, label = rec.Tag, rec.Tag
		}

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, GroupNode(label, key, nil))
		}
		groups[i].Children = append(groups[i].Children, TaskNode(rec))
	}
	return groups
}

// Row is one visible line of a flattened tree.
type Row struct {
	Node     Node
	Depth    int
	Expanded bool
}

// Flatten lists nodes depth-first. Children of a group are included only
// when expanded reports true for the group's key; a nil expanded expands
// every group.
func Flatten(nodes []Node, expanded func(key string) bool) []Row {
	var rows []Row
	for _, n := range nodes {
		open := n.IsGroup() && (expanded == nil || expanded(n.Key))
		rows = append(rows, Row{Node: n, Depth: 0, Expanded: open})
		if !open {
			continue
		}
		for _, c := range n.Children {
			rows = append(rows, Row{Node: c, Depth: 1})
		}
	}
	return rows
}
