package policy

import (
	"strconv"
	"strings"
)

// NameSet hands out storage names that are unique within one request.
// Two uploads in the same second with the same original name would
// otherwise collide. Not safe for concurrent use.
type NameSet struct {
	seen map[string]struct{}
}

// NewNameSet creates an empty set.
func NewNameSet() *NameSet {
	return &NameSet{seen: make(map[string]struct{})}
}

// Reserve returns name, or name with a "-N" suffix before its extension if
// name was already reserved.
func (s *NameSet) Reserve(name string) string {
	if _, taken := s.seen[name]; !taken {
		s.seen[name] = struct{}{}
		return name
	}

	stem, ext := name, ""
	if dot := strings.LastIndexByte(name, '.'); dot > 0 {
		stem, ext = name[:dot], name[dot:]
	}
	for n := 2; ; n++ {
		candidate := stem + "-" + strconv.Itoa(n) + ext
		if _, taken := s.seen[candidate]; !taken {
			s.seen[candidate] = struct{}{}
			return candidate
		}
	}
}

// Len returns the number of reserved names.
func (s *NameSet) Len() int { return len(s.seen) }
