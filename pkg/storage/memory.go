package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// normalizeLabel converts a label to lowercase for case-insensitive matching.
func normalizeLabel(label string) string {
	return strings.ToLower(label)
}

// MemoryEngine is a thread-safe in-memory graph storage implementation.
//
// Nodes and edges are deep-copied on the way in and out. Label and
// outgoing-edge indexes make GetNodesByLabel and GetEdgesBetween
// independent of the total graph size.
//
// Example:
//
//	engine := storage.NewMemoryEngine()
//	defer engine.Close()
//
//	engine.BulkCreateNodes(nodes)
//	engine.BulkCreateEdges(edges)
//
//	rows, _ := engine.GetNodesByLabel("row")
//	fmt.Printf("Found %d rows\n", len(rows))
type MemoryEngine struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge

	// Indexes for efficient lookups
	nodesByLabel  map[string]map[NodeID]struct{}
	outgoingEdges map[NodeID]map[EdgeID]struct{}

	closed bool
}

// NewMemoryEngine creates a new in-memory storage engine with empty indexes.
//
// All data is lost when the engine is closed or the process exits.
//
// Thread Safety:
//
//	Safe for concurrent use from multiple goroutines.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		nodes:         make(map[NodeID]*Node),
		edges:         make(map[EdgeID]*Edge),
		nodesByLabel:  make(map[string]map[NodeID]struct{}),
		outgoingEdges: make(map[NodeID]map[EdgeID]struct{}),
	}
}

// CreateNode creates a new node in the storage.
//
// Returns:
//   - nil on success
//   - ErrInvalidData if node is nil
//   - ErrInvalidID if ID is empty
//   - ErrAlreadyExists if node with this ID exists
//   - ErrStorageClosed if engine is closed
func (m *MemoryEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	if _, exists := m.nodes[node.ID]; exists {
		return ErrAlreadyExists
	}

	m.createNodeUnlocked(node)
	return nil
}

// GetNode retrieves a copy of a node by its unique ID.
func (m *MemoryEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	node, exists := m.nodes[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyNode(node), nil
}

// UpdateNode replaces an existing node.
func (m *MemoryEngine) UpdateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	existing, exists := m.nodes[node.ID]
	if !exists {
		return ErrNotFound
	}

	// Remove from old label indexes
	for _, label := range existing.Labels {
		if set := m.nodesByLabel[normalizeLabel(label)]; set != nil {
			delete(set, node.ID)
		}
	}

	m.createNodeUnlocked(node)
	return nil
}

// CreateEdge creates a new edge. Both endpoints must exist.
func (m *MemoryEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	if _, exists := m.edges[edge.ID]; exists {
		return ErrAlreadyExists
	}
	if _, exists := m.nodes[edge.StartNode]; !exists {
		return ErrInvalidEdge
	}
	if _, exists := m.nodes[edge.EndNode]; !exists {
		return ErrInvalidEdge
	}

	m.createEdgeUnlocked(edge)
	return nil
}

// GetEdge retrieves a copy of an edge by ID.
func (m *MemoryEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	edge, exists := m.edges[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyEdge(edge), nil
}

// GetNodesByLabel returns all nodes carrying label (case-insensitive),
// ordered by ID.
func (m *MemoryEngine) GetNodesByLabel(label string) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	ids := m.nodesByLabel[normalizeLabel(label)]
	nodes := make([]*Node, 0, len(ids))
	for id := range ids {
		nodes = append(nodes, copyNode(m.nodes[id]))
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

// GetEdgesBetween returns the edges from startID to endID, ordered by ID.
func (m *MemoryEngine) GetEdgesBetween(startID, endID NodeID) ([]*Edge, error) {
	if startID == "" || endID == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	var edges []*Edge
	for id := range m.outgoingEdges[startID] {
		if e := m.edges[id]; e.EndNode == endID {
			edges = append(edges, copyEdge(e))
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges, nil
}

// BulkCreateNodes creates many nodes in one operation.
//
// All nodes are validated before any is inserted, so the call either
// creates every node or none.
func (m *MemoryEngine) BulkCreateNodes(nodes []*Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	// Validate all nodes first
	seen := make(map[NodeID]struct{}, len(nodes))
	for _, node := range nodes {
		if node == nil {
			return ErrInvalidData
		}
		if node.ID == "" {
			return ErrInvalidID
		}
		if _, exists := m.nodes[node.ID]; exists {
			return ErrAlreadyExists
		}
		if _, dup := seen[node.ID]; dup {
			return ErrAlreadyExists
		}
		seen[node.ID] = struct{}{}
	}

	for _, node := range nodes {
		m.createNodeUnlocked(node)
	}
	return nil
}

// BulkCreateEdges creates many edges in one operation, all or nothing.
func (m *MemoryEngine) BulkCreateEdges(edges []*Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	// Validate all edges first
	seen := make(map[EdgeID]struct{}, len(edges))
	for _, edge := range edges {
		if edge == nil {
			return ErrInvalidData
		}
		if edge.ID == "" {
			return ErrInvalidID
		}
		if _, exists := m.edges[edge.ID]; exists {
			return ErrAlreadyExists
		}
		if _, dup := seen[edge.ID]; dup {
			return ErrAlreadyExists
		}
		seen[edge.ID] = struct{}{}
		if _, exists := m.nodes[edge.StartNode]; !exists {
			return ErrInvalidEdge
		}
		if _, exists := m.nodes[edge.EndNode]; !exists {
			return ErrInvalidEdge
		}
	}

	for _, edge := range edges {
		m.createEdgeUnlocked(edge)
	}
	return nil
}

// StreamNodes calls fn for a snapshot of every node, ordered by ID.
func (m *MemoryEngine) StreamNodes(ctx context.Context, fn func(node *Node) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrStorageClosed
	}
	nodes := make([]*Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, copyNode(n))
	}
	m.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

// StreamEdges calls fn for a snapshot of every edge, ordered by ID.
func (m *MemoryEngine) StreamEdges(ctx context.Context, fn func(edge *Edge) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrStorageClosed
	}
	edges := make([]*Edge, 0, len(m.edges))
	for _, e := range m.edges {
		edges = append(edges, copyEdge(e))
	}
	m.mu.RUnlock()

	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	for _, e := range edges {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the storage engine and releases all memory.
//
// After Close(), all subsequent operations will return ErrStorageClosed.
// This method is idempotent - calling Close() multiple times is safe.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.nodes = nil
	m.edges = nil
	m.nodesByLabel = nil
	m.outgoingEdges = nil

	return nil
}

// NodeCount returns the number of nodes.
func (m *MemoryEngine) NodeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.nodes)), nil
}

// EdgeCount returns the number of edges.
func (m *MemoryEngine) EdgeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.edges)), nil
}

func (m *MemoryEngine) createNodeUnlocked(node *Node) {
	m.nodes[node.ID] = copyNode(node)
	for _, label := range node.Labels {
		normalLabel := normalizeLabel(label)
		if m.nodesByLabel[normalLabel] == nil {
			m.nodesByLabel[normalLabel] = make(map[NodeID]struct{})
		}
		m.nodesByLabel[normalLabel][node.ID] = struct{}{}
	}
}

func (m *MemoryEngine) createEdgeUnlocked(edge *Edge) {
	m.edges[edge.ID] = copyEdge(edge)

	if m.outgoingEdges[edge.StartNode] == nil {
		m.outgoingEdges[edge.StartNode] = make(map[EdgeID]struct{})
	}
	m.outgoingEdges[edge.StartNode][edge.ID] = struct{}{}
}

var _ StreamingEngine = (*MemoryEngine)(nil)
