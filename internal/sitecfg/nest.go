package sitecfg

import (
	"strings"

	"github.com/foxshrine/shrine-api/internal/model"
)

// Materialize builds a nested structure from flat config rows. Each canonical
// key is split on '.' with intermediate levels created as needed; the last
// segment holds the coerced value. Rows apply in slice order, so the last
// write for a colliding path wins.
func Materialize(entries []model.ConfigEntry) map[string]any {
	out := make(map[string]any)
	for _, e := range entries {
		SetPath(out, Normalize(e.Key), Coerce(e.Value))
	}
	return out
}

// SetPath writes a value at a dot-delimited path, replacing any non-map
// intermediate it runs into.
func SetPath(m map[string]any, path string, value any) {
	segs := strings.Split(path, ".")
	cur := m
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}

// GetPath reads the value at a dot-delimited path. The second return is
// false when any segment is missing or a non-map is traversed.
func GetPath(m map[string]any, path string) (any, bool) {
	segs := strings.Split(path, ".")
	cur := m
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	v, ok := cur[segs[len(segs)-1]]
	return v, ok
}

// Merge deep-merges src onto dst and returns dst. Nested maps merge
// recursively; any other conflict is resolved in src's favor. dst may be
// nil, in which case a new map is allocated.
func Merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for k, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				dst[k] = Merge(dm, sm)
				continue
			}
			dst[k] = Merge(nil, sm)
			continue
		}
		dst[k] = sv
	}
	return dst
}

// Clone returns a deep copy of a nested config map. Leaf values are shared;
// only the map spine is copied, which is enough to make snapshot-and-revert
// safe since leaves are never mutated in place.
func Clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if child, ok := v.(map[string]any); ok {
			out[k] = Clone(child)
			continue
		}
		out[k] = v
	}
	return out
}
