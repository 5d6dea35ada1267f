package graphstore

import (
	"sort"

	"github.com/codesearch-core/codesearch/internal/entity"
)

// snapshot is the in-memory view both Store backends fetch their current
// repository's nodes and edges into, so the traversal algorithms below run
// identically over FakeStore and SurrealDBStore: the teacher's HybridSearch
// already fans out and merges in application code rather than pushing the
// whole computation into one database query, and bounded BFS/SCC over a
// modest per-repository graph is exactly the kind of computation that idiom
// generalizes to.
type snapshot struct {
	nodes map[string]Node // entity_id -> node
	out   map[string][]Edge
	in    map[string][]Edge
}

func buildSnapshot(nodes []Node, edges []Edge) snapshot {
	s := snapshot{
		nodes: make(map[string]Node, len(nodes)),
		out:   make(map[string][]Edge),
		in:    make(map[string][]Edge),
	}
	for _, n := range nodes {
		s.nodes[n.EntityID] = n
	}
	for _, e := range edges {
		s.out[e.SourceEntityID] = append(s.out[e.SourceEntityID], e)
		s.in[e.TargetEntityID] = append(s.in[e.TargetEntityID], e)
	}
	return s
}

func (s snapshot) findByQualifiedName(qname string) (Node, bool) {
	for _, n := range s.nodes {
		if n.QualifiedName == qname {
			return n, true
		}
	}
	return Node{}, false
}

// bfsTraverse walks edges of refType in direction dir ("out" or "in") from
// start, up to maxDepth hops, returning each newly-reached node with its
// depth. Depth-first revisits are suppressed; a node reachable by more than
// one path keeps its first (shallowest) depth.
func bfsTraverse(s snapshot, start string, refType entity.RefType, dir string, maxDepth int) []TraversalHit {
	maxDepth = clampDepth(maxDepth)
	visited := map[string]bool{start: true}
	frontier := []string{start}
	var hits []TraversalHit

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			var edges []Edge
			if dir == "out" {
				edges = s.out[id]
			} else {
				edges = s.in[id]
			}
			for _, e := range edges {
				if e.RefType != refType {
					continue
				}
				target := e.TargetEntityID
				if dir == "in" {
					target = e.SourceEntityID
				}
				if visited[target] {
					continue
				}
				visited[target] = true
				if n, ok := s.nodes[target]; ok {
					hits = append(hits, TraversalHit{Node: n, Depth: depth})
				}
				next = append(next, target)
			}
		}
		frontier = next
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Depth != hits[j].Depth {
			return hits[i].Depth < hits[j].Depth
		}
		return hits[i].Node.EntityID < hits[j].Node.EntityID
	})
	return hits
}

func findFunctionCallers(s snapshot, qualifiedName string, maxDepth int) []TraversalHit {
	start, ok := s.findByQualifiedName(qualifiedName)
	if !ok {
		return nil
	}
	return bfsTraverse(s, start.EntityID, entity.RefCalls, "in", maxDepth)
}

func findFunctionCallees(s snapshot, qualifiedName string, maxDepth int) []TraversalHit {
	start, ok := s.findByQualifiedName(qualifiedName)
	if !ok {
		return nil
	}
	return bfsTraverse(s, start.EntityID, entity.RefCalls, "out", maxDepth)
}

func findTraitImplementations(s snapshot, qualifiedName string) []Node {
	target, ok := s.findByQualifiedName(qualifiedName)
	if !ok {
		return nil
	}
	var out []Node
	for _, e := range s.in[target.EntityID] {
		if e.RefType != entity.RefImplements {
			continue
		}
		if n, ok := s.nodes[e.SourceEntityID]; ok {
			out = append(out, n)
		}
	}
	sortNodesByQualifiedName(out)
	return out
}

func findClassHierarchy(s snapshot, qualifiedName string) []Node {
	start, ok := s.findByQualifiedName(qualifiedName)
	if !ok {
		return nil
	}
	seen := map[string]bool{start.EntityID: true}
	var out []Node

	var walk func(id string)
	walk = func(id string) {
		for _, e := range s.out[id] {
			if e.RefType != entity.RefInheritsFrom || seen[e.TargetEntityID] {
				continue
			}
			seen[e.TargetEntityID] = true
			if n, ok := s.nodes[e.TargetEntityID]; ok {
				out = append(out, n)
			}
			walk(e.TargetEntityID)
		}
		for _, e := range s.in[id] {
			if e.RefType != entity.RefInheritsFrom || seen[e.SourceEntityID] {
				continue
			}
			seen[e.SourceEntityID] = true
			if n, ok := s.nodes[e.SourceEntityID]; ok {
				out = append(out, n)
			}
			walk(e.SourceEntityID)
		}
	}
	walk(start.EntityID)
	sortNodesByQualifiedName(out)
	return out
}

func findModuleContents(s snapshot, qualifiedName string) []Node {
	start, ok := s.findByQualifiedName(qualifiedName)
	if !ok {
		return nil
	}
	var out []Node
	for _, e := range s.out[start.EntityID] {
		if e.RefType != entity.RefContains {
			continue
		}
		if n, ok := s.nodes[e.TargetEntityID]; ok {
			out = append(out, n)
		}
	}
	sortNodesByQualifiedName(out)
	return out
}

// findModuleDependencies aggregates Imports edges at module granularity
// (spec §9 Design Notes: "aggregates them to module granularity by walking
// Contains up from each import's source"). Entity-level Imports edges are
// recorded on whichever entity wrote the `use`/`import` statement, which may
// be nested several Contains-levels below the module itself (a method
// inside an impl inside the module, say), so dependencies are collected
// from qualifiedName's full Contains subtree, not just its direct edges; the
// aggregation key for each dependency is likewise derived by walking
// Contains up from the import's target to its own enclosing module, rather
// than truncating its qualified name by convention.
func findModuleDependencies(s snapshot, qualifiedName string) []ModuleDependency {
	start, ok := s.findByQualifiedName(qualifiedName)
	if !ok {
		return nil
	}
	counts := make(map[string]int)
	for _, memberID := range moduleMembers(s, start.EntityID) {
		for _, e := range s.out[memberID] {
			if e.RefType != entity.RefImports {
				continue
			}
			counts[moduleAncestor(s, e.TargetEntityID)]++
		}
	}
	out := make([]ModuleDependency, 0, len(counts))
	for module, count := range counts {
		out = append(out, ModuleDependency{Module: module, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Module < out[j].Module
	})
	return out
}

// moduleMembers returns startID plus every entity transitively reachable by
// walking Contains edges downward from it, so an Imports edge recorded on a
// deeply nested member still counts toward its enclosing module's
// dependencies.
func moduleMembers(s snapshot, startID string) []string {
	seen := map[string]bool{startID: true}
	queue := []string{startID}
	out := []string{startID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range s.out[id] {
			if e.RefType != entity.RefContains || seen[e.TargetEntityID] {
				continue
			}
			seen[e.TargetEntityID] = true
			out = append(out, e.TargetEntityID)
			queue = append(queue, e.TargetEntityID)
		}
	}
	return out
}

// moduleAncestor walks Contains edges upward from entityID to the nearest
// ancestor whose EntityType is Module. An entity with no containing module
// in the graph (a top-level module itself, or an unresolved external
// placeholder with no incoming Contains edge) resolves to its own qualified
// name.
func moduleAncestor(s snapshot, entityID string) string {
	visited := make(map[string]bool)
	id := entityID
	for !visited[id] {
		visited[id] = true
		n, ok := s.nodes[id]
		if !ok {
			return entityID
		}
		if n.EntityType == string(entity.EntityTypeModule) {
			return n.QualifiedName
		}
		parentID, hasParent := "", false
		for _, e := range s.in[id] {
			if e.RefType == entity.RefContains {
				parentID, hasParent = e.SourceEntityID, true
				break
			}
		}
		if !hasParent {
			return n.QualifiedName
		}
		id = parentID
	}
	// Contains cycle (should not occur in a well-formed graph); fall back to
	// the starting entity's own qualified name rather than looping forever.
	if n, ok := s.nodes[entityID]; ok {
		return n.QualifiedName
	}
	return entityID
}

// findUnusedFunctions returns Function/Method nodes with zero incoming Calls
// edges, excluding Public visibility (an exported symbol may be called from
// outside the indexed set, so it is never "unused" by this analysis).
func findUnusedFunctions(s snapshot, limit int) []Node {
	limit = clampLimit(limit)
	var out []Node
	for _, n := range s.nodes {
		if n.EntityType != "Function" && n.EntityType != "Method" {
			continue
		}
		if n.Visibility == "Public" {
			continue
		}
		if hasIncomingCalls(s, n.EntityID) {
			continue
		}
		out = append(out, n)
	}
	sortNodesByQualifiedName(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func hasIncomingCalls(s snapshot, entityID string) bool {
	for _, e := range s.in[entityID] {
		if e.RefType == entity.RefCalls {
			return true
		}
	}
	return false
}

// findCircularDependencies finds strongly connected components of size > 1
// over Imports edges, aggregated to module granularity (spec §4.7), via
// Tarjan's algorithm.
func findCircularDependencies(s snapshot, limit int) [][]string {
	limit = clampLimit(limit)

	moduleEdges := make(map[string]map[string]bool)
	for _, edges := range s.out {
		for _, e := range edges {
			if e.RefType != entity.RefImports {
				continue
			}
			if _, ok := s.nodes[e.SourceEntityID]; !ok {
				continue
			}
			src := moduleAncestor(s, e.SourceEntityID)
			dst := moduleAncestor(s, e.TargetEntityID)
			if src == dst {
				continue
			}
			if moduleEdges[src] == nil {
				moduleEdges[src] = make(map[string]bool)
			}
			moduleEdges[src][dst] = true
		}
	}

	sccs := tarjanSCC(moduleEdges)
	var out [][]string
	for _, scc := range sccs {
		if len(scc) > 1 {
			sort.Strings(scc)
			out = append(out, scc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// tarjanSCC computes strongly connected components of a directed graph given
// as an adjacency map.
func tarjanSCC(adj map[string]map[string]bool) [][]string {
	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var result [][]string

	nodes := make([]string, 0, len(adj))
	for n := range adj {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	var strongconnect func(v string)
	strongconnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		neighbors := make([]string, 0, len(adj[v]))
		for w := range adj[v] {
			neighbors = append(neighbors, w)
		}
		sort.Strings(neighbors)

		for _, w := range neighbors {
			if _, seen := indices[w]; !seen {
				if _, hasAdj := adj[w]; !hasAdj {
					adj[w] = map[string]bool{}
				}
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			result = append(result, scc)
		}
	}

	for _, v := range nodes {
		if _, seen := indices[v]; !seen {
			strongconnect(v)
		}
	}
	return result
}

func sortNodesByQualifiedName(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].QualifiedName < nodes[j].QualifiedName })
}
