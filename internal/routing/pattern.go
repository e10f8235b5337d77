package routing

import "strings"

// PathPattern matches one path segment per {param} placeholder. The trace
// surface routes entity numbers as path segments, so a pattern such as
// /api/trace/{number} must match whatever identifier string the client sends
// without interpreting it.
type PathPattern struct {
	segments []patternSegment
}

type patternSegment struct {
	literal string
	param   bool
}

func parsePathPattern(raw string) (PathPattern, bool) {
	if !strings.Contains(raw, "{") {
		return PathPattern{}, false
	}
	if raw == "" || raw[0] != '/' {
		return PathPattern{}, false
	}

	parts := splitPathSegments(raw)
	segments := make([]patternSegment, 0, len(parts))
	for _, s := range parts {
		switch {
		case s == "":
			return PathPattern{}, false
		case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
			if len(s) <= 2 {
				return PathPattern{}, false
			}
			segments = append(segments, patternSegment{param: true})
		case strings.ContainsAny(s, "{}"):
			return PathPattern{}, false
		default:
			segments = append(segments, patternSegment{literal: s})
		}
	}
	return PathPattern{segments: segments}, true
}

func (p PathPattern) Match(path string) bool {
	if len(p.segments) == 0 {
		return false
	}
	in := splitPathSegments(path)
	if len(in) != len(p.segments) {
		return false
	}
	for i, seg := range p.segments {
		if in[i] == "" {
			return false
		}
		if seg.param {
			continue
		}
		if in[i] != seg.literal {
			return false
		}
	}
	return true
}

func splitPathSegments(path string) []string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
