package graph

// Stats summarises the size of a graph.
type Stats struct {
	Nodes   int
	Ways    int
	Known   int
	Targets int
}

func (g *Graph) Stats() Stats {
	var s Stats
	if g == nil {
		return s
	}
	s.Nodes = len(g.Nodes)
	s.Targets = len(g.Targets)
	for _, n := range g.Nodes {
		s.Ways += len(n.Ways)
		if n.Known {
			s.Known++
		}
	}
	return s
}
