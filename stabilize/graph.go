package stabilize

import (
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// sortRegistrations orders registrations so every stage runs after the
// stages it depends on (Kahn-style topological sort over declared
// dependency ids). A dependency id that names no configured stage is
// ignored rather than rejected, so partial chains keep working. A
// cycle among configured stages is a configuration error.
func sortRegistrations(regs []Registration) ([]Registration, error) {
	index := make(map[string]int64, len(regs))
	for i, reg := range regs {
		if _, dup := index[reg.ID]; dup {
			return nil, fmt.Errorf("duplicate stabilizer id %q", reg.ID)
		}
		index[reg.ID] = int64(i)
	}

	g := simple.NewDirectedGraph()
	for i := range regs {
		g.AddNode(simple.Node(int64(i)))
	}
	for i, reg := range regs {
		for _, dep := range reg.Dependencies {
			from, ok := index[dep]
			if !ok {
				continue // unconfigured dependency: treated as satisfied
			}
			if from == int64(i) {
				return nil, fmt.Errorf("stabilizer %q depends on itself", reg.ID)
			}
			g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(int64(i))})
		}
	}

	// Stabilized sort keeps independent stages in registration order,
	// which keeps frame merging deterministic.
	nodes, err := topo.SortStabilized(g, nil)
	if err != nil {
		return nil, fmt.Errorf("stabilizer dependency cycle: %w", err)
	}

	sorted := make([]Registration, 0, len(regs))
	for _, n := range nodes {
		sorted = append(sorted, regs[n.ID()])
	}
	return sorted, nil
}
