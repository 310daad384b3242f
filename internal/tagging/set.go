package tagging

import "sort"

// Set is a deduplicated collection of tag names.
type Set map[string]struct{}

func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s Set) Add(name string) { s[name] = struct{}{} }

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s Set) Len() int { return len(s) }

// Names returns the members in ascending order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s Set) Union(o Set) Set {
	out := make(Set, len(s)+len(o))
	for n := range s {
		out[n] = struct{}{}
	}
	for n := range o {
		out[n] = struct{}{}
	}
	return out
}
