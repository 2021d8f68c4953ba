// Package merge turns sparse update documents into field-level operations and
// reconciles list and nutrition data coming from two sources.
package merge

import (
	"sort"
	"strings"
)

// Path is a segmented field path, e.g. ["nutrition", "protein"].
type Path []string

func (p Path) String() string { return strings.Join(p, ".") }

type Write struct {
	Path  Path
	Value any
}

// Ops is the result of flattening an update document. Writes and Clears never
// share a path.
type Ops struct {
	Writes []Write
	Clears []Path
}

func (o Ops) Empty() bool { return len(o.Writes) == 0 && len(o.Clears) == 0 }

// Flatten walks update and emits a clear for every null value, recurses into
// nested objects, and emits a write for every list or scalar. Keys are visited
// in sorted order so the result is deterministic.
func Flatten(update map[string]any) Ops {
	var ops Ops
	flatten(nil, update, &ops)
	return ops
}

func flatten(prefix Path, doc map[string]any, ops *Ops) {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := append(append(Path{}, prefix...), k)
		switch v := doc[k].(type) {
		case nil:
			ops.Clears = append(ops.Clears, path)
		case map[string]any:
			flatten(path, v, ops)
		default:
			ops.Writes = append(ops.Writes, Write{Path: path, Value: v})
		}
	}
}

// Apply returns a copy of doc with ops applied. Missing intermediate objects are
// created for writes; clearing a path that does not exist is a no-op. doc is not
// modified.
func Apply(doc map[string]any, ops Ops) map[string]any {
	out := deepCopy(doc)
	for _, w := range ops.Writes {
		set(out, w.Path, w.Value)
	}
	for _, c := range ops.Clears {
		unset(out, c)
	}
	return out
}

func set(doc map[string]any, path Path, value any) {
	cur := doc
	for _, seg := range path[:len(path)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = value
}

func unset(doc map[string]any, path Path) {
	cur := doc
	for _, seg := range path[:len(path)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, path[len(path)-1])
}

func deepCopy(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		switch t := v.(type) {
		case map[string]any:
			out[k] = deepCopy(t)
		case []any:
			cp := make([]any, len(t))
			copy(cp, t)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}
