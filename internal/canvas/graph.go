package canvas

import (
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Layout constants shared by ArrangeNodes, FitView and DuplicateNode.
const (
	arrangeColumns  = 3
	arrangeOriginX  = 100
	arrangeOriginY  = 100
	arrangeSpacingX = 400
	arrangeSpacingY = 300

	nodeWidth  = 300
	nodeHeight = 200
	fitPadding = 50

	duplicateOffset = 50
)

// arrangeOrder is the group order used by ArrangeNodes.
var arrangeOrder = []NodeType{TypeVideo, TypeTranscription, TypeMoodboard, TypeAgent}

// Graph is the in-memory canvas of one project. All methods are safe for
// concurrent use; writes are last-writer-wins. Operations on unknown ids are
// no-ops.
type Graph struct {
	mu       sync.Mutex
	nodes    []Node
	edges    []Edge
	selected map[string]struct{}
	viewport Viewport
	newID    func() string
}

func NewGraph() *Graph {
	return &Graph{
		selected: make(map[string]struct{}),
		viewport: DefaultViewport,
		newID:    uuid.NewString,
	}
}

// FromState builds a graph from a persisted snapshot.
func FromState(s State) *Graph {
	g := NewGraph()
	g.Load(s)
	return g
}

// Load replaces the graph contents with s and clears the selection.
func (g *Graph) Load(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make([]Node, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.Data == nil {
			continue
		}
		g.nodes = append(g.nodes, n.clone())
	}
	g.edges = append([]Edge(nil), s.Edges...)
	g.selected = make(map[string]struct{})
	g.viewport = s.Viewport
	if g.viewport.Zoom == 0 {
		g.viewport = DefaultViewport
	}
}

// Snapshot returns a deep copy of the graph suitable for persisting.
func (g *Graph) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := State{
		Nodes:    make([]Node, len(g.nodes)),
		Edges:    append([]Edge{}, g.edges...),
		Viewport: g.viewport,
	}
	for i, n := range g.nodes {
		s.Nodes[i] = n.clone()
	}
	return s
}

func (g *Graph) indexOf(id string) int {
	for i, n := range g.nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// AddNode appends n, assigning an id when empty. A node with an existing id
// replaces the old one in place. Nodes without data are ignored.
func (g *Graph) AddNode(n Node) string {
	if n.Data == nil {
		return ""
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if n.ID == "" {
		n.ID = g.newID()
	}
	n = n.clone()
	if i := g.indexOf(n.ID); i >= 0 {
		g.nodes[i] = n
	} else {
		g.nodes = append(g.nodes, n)
	}
	return n.ID
}

// NodePatch is a partial node update. Nil fields are left unchanged. Data is
// applied only when its type matches the node's type.
type NodePatch struct {
	Position *Position
	Data     NodeData
}

func (g *Graph) UpdateNode(id string, patch NodePatch) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.indexOf(id)
	if i < 0 {
		return false
	}
	if patch.Position != nil {
		g.nodes[i].Position = *patch.Position
	}
	if patch.Data != nil && patch.Data.Type() == g.nodes[i].Type() {
		g.nodes[i].Data = patch.Data.clone()
	}
	return true
}

// RemoveNode deletes the node, every edge touching it and its selection.
// Removing an absent node leaves the graph unchanged.
func (g *Graph) RemoveNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if i := g.indexOf(id); i >= 0 {
		g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
	}
	edges := g.edges[:0]
	for _, e := range g.edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}
	g.edges = edges
	delete(g.selected, id)
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if i := g.indexOf(id); i >= 0 {
		return g.nodes[i].clone(), true
	}
	return Node{}, false
}

func (g *Graph) Nodes() []Node {
	return g.Snapshot().Nodes
}

func (g *Graph) Edges() []Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Edge{}, g.edges...)
}

// AddEdge connects two existing nodes. Duplicate connections and edges with
// a missing endpoint are ignored.
func (g *Graph) AddEdge(e Edge) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if e.Source == e.Target || g.indexOf(e.Source) < 0 || g.indexOf(e.Target) < 0 {
		return "", false
	}
	for _, existing := range g.edges {
		if existing.Source == e.Source && existing.Target == e.Target {
			return existing.ID, false
		}
	}
	if e.ID == "" {
		e.ID = g.newID()
	}
	g.edges = append(g.edges, e)
	return e.ID, true
}

func (g *Graph) RemoveEdge(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, e := range g.edges {
		if e.ID == id {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			return
		}
	}
}

// Upstream returns the nodes with an edge pointing at id, in node order.
func (g *Graph) Upstream(id string) []Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	sources := make(map[string]bool)
	for _, e := range g.edges {
		if e.Target == id {
			sources[e.Source] = true
		}
	}
	var out []Node
	for _, n := range g.nodes {
		if sources[n.ID] {
			out = append(out, n.clone())
		}
	}
	return out
}

// FilterExisting drops ids that do not name a node on the canvas.
func (g *Graph) FilterExisting(ids []string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []string
	for _, id := range ids {
		if g.indexOf(id) >= 0 {
			out = append(out, id)
		}
	}
	return out
}

// Select makes id the only selected node.
func (g *Graph) Select(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.indexOf(id) < 0 {
		return
	}
	g.selected = map[string]struct{}{id: {}}
}

// SelectMany replaces the selection with the known ids in ids.
func (g *Graph) SelectMany(ids []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	sel := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if g.indexOf(id) >= 0 {
			sel[id] = struct{}{}
		}
	}
	g.selected = sel
}

func (g *Graph) ToggleSelect(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.selected[id]; ok {
		delete(g.selected, id)
		return
	}
	if g.indexOf(id) >= 0 {
		g.selected[id] = struct{}{}
	}
}

func (g *Graph) Deselect(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.selected, id)
}

func (g *Graph) ClearSelection() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selected = make(map[string]struct{})
}

// Selected returns the selected ids sorted.
func (g *Graph) Selected() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]string, 0, len(g.selected))
	for id := range g.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ArrangeNodes lays the nodes out on a grid. Nodes are grouped by type in
// the order video, transcription, moodboard, agent; each group fills rows of
// three and starts on a fresh row.
func (g *Graph) ArrangeNodes() {
	g.mu.Lock()
	defer g.mu.Unlock()

	row := 0
	for _, t := range arrangeOrder {
		col := 0
		placed := 0
		for i := range g.nodes {
			if g.nodes[i].Type() != t {
				continue
			}
			g.nodes[i].Position = Position{
				X: arrangeOriginX + float64(col*arrangeSpacingX),
				Y: arrangeOriginY + float64(row*arrangeSpacingY),
			}
			placed++
			col++
			if col == arrangeColumns {
				col = 0
				row++
			}
		}
		if placed > 0 && col != 0 {
			row++
		}
	}
}

// FitView computes and applies a viewport that fits every node inside a
// screen of the given size. The zoom never exceeds 1. An empty canvas yields
// the default viewport.
func (g *Graph) FitView(width, height float64) Viewport {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.nodes) == 0 {
		g.viewport = DefaultViewport
		return g.viewport
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range g.nodes {
		minX = math.Min(minX, n.Position.X)
		minY = math.Min(minY, n.Position.Y)
		maxX = math.Max(maxX, n.Position.X+nodeWidth)
		maxY = math.Max(maxY, n.Position.Y+nodeHeight)
	}
	boxW := maxX - minX
	boxH := maxY - minY

	zoom := 1.0
	if width > 2*fitPadding && height > 2*fitPadding {
		fitX := (width - 2*fitPadding) / boxW
		fitY := (height - 2*fitPadding) / boxH
		zoom = math.Min(math.Min(fitX, fitY), 1)
	}

	g.viewport = Viewport{
		X:    (width-boxW*zoom)/2 - minX*zoom,
		Y:    (height-boxH*zoom)/2 - minY*zoom,
		Zoom: zoom,
	}
	return g.viewport
}

func (g *Graph) Viewport() Viewport {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.viewport
}

func (g *Graph) SetViewport(v Viewport) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.viewport = v
}

// DuplicateNode clones a node under a fresh id, offset from the original.
// Edges are not copied.
func (g *Graph) DuplicateNode(id string) (Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.indexOf(id)
	if i < 0 {
		return Node{}, false
	}
	dup := g.nodes[i].clone()
	dup.ID = g.newID()
	dup.Position.X += duplicateOffset
	dup.Position.Y += duplicateOffset
	g.nodes = append(g.nodes, dup)
	return dup.clone(), true
}
