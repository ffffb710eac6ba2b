package registry

import "github.com/nicia-ai/typegraph"

// closeForward computes, for every kind appearing in direct, the
// transitive forward closure (not including the kind itself).
func closeForward(direct map[string][]string) map[string][]string {
	out := make(map[string][]string, len(direct))
	for kind := range direct {
		out[kind] = transitiveClosure(direct, kind)
	}
	return out
}

// closeInverse computes the transitive closure of the reversed graph: for
// every kind reachable from some source via direct, implyingEdges[kind]
// includes that source.
func closeInverse(direct map[string][]string) map[string][]string {
	reverse := make(map[string][]string)
	for from, tos := range direct {
		for _, to := range tos {
			reverse[to] = append(reverse[to], from)
		}
	}
	out := make(map[string][]string)
	all := make(map[string]struct{})
	for from, tos := range direct {
		all[from] = struct{}{}
		for _, to := range tos {
			all[to] = struct{}{}
		}
	}
	for kind := range all {
		out[kind] = transitiveClosure(reverse, kind)
	}
	return out
}

func transitiveClosure(graph map[string][]string, start string) []string {
	seen := make(map[string]struct{})
	queue := append([]string(nil), graph[start]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		queue = append(queue, graph[cur]...)
	}
	return sortedKeys(seen)
}

// detectImplicationCycle rejects an Implies graph containing a cycle: a
// kind that (transitively) implies itself. Spec §4.1 permits this only
// through declared equivalent-edge pairs, which this module does not
// model as Implies loops — so any cycle here is a configuration error.
func detectImplicationCycle(direct map[string][]string) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)

	var visit func(node string, path []string) error
	visit = func(node string, path []string) error {
		switch color[node] {
		case gray:
			return typegraph.NewConfigurationError(
				"cyclic implication graph at kind "+node, nil)
		case black:
			return nil
		}
		color[node] = gray
		for _, next := range direct[node] {
			if err := visit(next, append(path, node)); err != nil {
				return err
			}
		}
		color[node] = black
		return nil
	}

	for node := range direct {
		if color[node] == white {
			if err := visit(node, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
