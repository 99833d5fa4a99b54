package runtime

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	"k8s.io/klog/v2"
)

type NameFilterFunc struct {
	Eq         string
	In         []string
	Contains   string
	StartsWith string
	EndsWith   string
}

// ObjectFilter is decoded from the "filter" query parameter. Name is either a
// plain string or a NameFilterFunc object.
type ObjectFilter struct {
	Name interface{} `json:"name,omitempty"`
	Id   string      `json:"id,omitempty"`
}

type Predicate func(o Object) bool

func ParseObjectFilter(filter *ObjectFilter) []Predicate {
	predicates := make([]Predicate, 0)

	// id
	if len(filter.Id) > 0 {
		p := func(o Object) bool {
			return filter.Id == o.GetID()
		}
		predicates = append(predicates, p)
	}

	// name
	if filter.Name != nil {
		if name, ok := filter.Name.(string); ok {
			p := func(o Object) bool {
				return name == o.GetName()
			}
			predicates = append(predicates, p)
		} else {
			var ff NameFilterFunc
			if err := mapstructure.Decode(filter.Name, &ff); err != nil {
				klog.V(3).InfoS("Failed to parse filter.name", "err", err)
			}
			// eq
			if len(ff.Eq) > 0 {
				p := func(o Object) bool {
					return ff.Eq == o.GetName()
				}
				predicates = append(predicates, p)
			}
			// in
			if len(ff.In) > 0 {
				p := func(o Object) bool {
					for _, name := range ff.In {
						if name == o.GetName() {
							return true
						}
					}
					return false
				}
				predicates = append(predicates, p)
			}
			// contains
			if len(ff.Contains) > 0 {
				p := func(o Object) bool {
					return strings.Contains(o.GetName(), ff.Contains)
				}
				predicates = append(predicates, p)
			}
			// startsWith
			if len(ff.StartsWith) > 0 {
				p := func(o Object) bool {
					return strings.HasPrefix(o.GetName(), strings.TrimSpace(ff.StartsWith))
				}
				predicates = append(predicates, p)
			}
			// endsWith
			if len(ff.EndsWith) > 0 {
				p := func(o Object) bool {
					return strings.HasSuffix(o.GetName(), strings.TrimSpace(ff.EndsWith))
				}
				predicates = append(predicates, p)
			}
		}
	}

	return predicates
}

// Match reports whether o satisfies every predicate.
func Match(o Object, predicates []Predicate) bool {
	for _, p := range predicates {
		if !p(o) {
			return false
		}
	}
	return true
}
