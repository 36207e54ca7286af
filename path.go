package flowbus

import "strings"

// PathSeparator joins Path segments in their canonical string form.
const PathSeparator = "."

// Path is an ordered tuple of non-empty string segments: the global identity
// key for a flow. Two paths are equal exactly when their segments match
// pairwise; a Path is immutable once constructed.
type Path struct {
	segments []string
}

// NewPath builds a Path from its segments. Empty segments are dropped and
// the rest kept; if none remain the Path has no segments, which NewTracer
// refuses.
func NewPath(segments ...string) Path {
	clean := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			clean = append(clean, s)
		}
	}
	return Path{segments: clean}
}

// ParsePath splits a canonical dotted path string back into a Path.
func ParsePath(s string) Path {
	if s == "" {
		return Path{}
	}
	return NewPath(strings.Split(s, PathSeparator)...)
}

// Segments returns a copy of the path's segments.
func (p Path) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Valid reports whether the path has at least one segment.
func (p Path) Valid() bool { return len(p.segments) > 0 }

// String renders the path in its canonical dotted form.
func (p Path) String() string { return strings.Join(p.segments, PathSeparator) }

// Equal reports whether two paths have identical segments in order.
func (p Path) Equal(other Path) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i, seg := range p.segments {
		if seg != other.segments[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether p begins with the segments of prefix. The
// router does not call it; it looks flows up by their full path string.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix.segments) > len(p.segments) {
		return false
	}
	for i, seg := range prefix.segments {
		if p.segments[i] != seg {
			return false
		}
	}
	return true
}

// Entry returns the first segment, or "" for a Path with no segments.
func (p Path) Entry() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[0]
}
