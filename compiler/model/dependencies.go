package model

// Dependencies is the ordered, nested import graph of a document.
type Dependencies []*Dependency

type Dependency struct {
	URL          string       `json:"url"`
	Dependencies Dependencies `json:"dependencies,omitempty"`
}

// Flatten returns root followed by every URL reachable from d, each listed
// once in the order first encountered.
func (d Dependencies) Flatten(root string) []string {
	seen := map[string]bool{root: true}
	out := []string{root}
	var walk func(Dependencies)
	walk = func(deps Dependencies) {
		for _, dep := range deps {
			if seen[dep.URL] {
				continue
			}
			seen[dep.URL] = true
			out = append(out, dep.URL)
			walk(dep.Dependencies)
		}
	}
	walk(d)
	return out
}
