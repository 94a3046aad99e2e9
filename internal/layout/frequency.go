package layout

import (
	"fmt"

	"github.com/rendis/tileflow/pkg/schema"
)

// IDFrequency counts how often an item id occurs across the path set.
type IDFrequency struct {
	Item schema.WorkflowItem
	// Occurrences is the number of decision combinations over all known
	// switches whose path contains the id. A power of two unless an end
	// branch cuts runs short; checkCoverage rejects those.
	Occurrences uint64
	// Paths is the number of distinct enumerated paths containing the id.
	Paths int

	first int // position of the first entry in PathSet.Flat
}

// countFrequencies counts every id once per path, loop turns included.
// Results are ordered by first appearance.
func countFrequencies(ps *PathSet) []IDFrequency {
	index := make(map[string]int)
	var out []IDFrequency

	for pi, path := range ps.Paths {
		seen := make(map[string]bool, len(path.Items))
		for k, item := range path.Items {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true

			i, ok := index[item.ID]
			if !ok {
				i = len(out)
				index[item.ID] = i
				out = append(out, IDFrequency{Item: item.Canonical(), first: ps.flatIndex(pi, k)})
			}
			out[i].Occurrences += path.Weight
			out[i].Paths++
		}
	}
	return out
}

// checkCoverage requires every occurrence count to be a power of two, the
// only counts the base grid has a column for. A branch that ends the
// workflow while tiles still follow its switch leaves those tiles short.
func checkCoverage(ps *PathSet, freqs []IDFrequency) error {
	for _, f := range freqs {
		if c := f.Occurrences; c == 0 || c&(c-1) != 0 {
			return &DefinitionError{
				Reason: fmt.Sprintf("tile %s is reached by %d of %d decision combinations; "+
					"an end branch skips it and the grid has no column for that count", f.Item.ID, c, ps.Total),
				ElementID: f.Item.ID,
			}
		}
	}
	return nil
}
