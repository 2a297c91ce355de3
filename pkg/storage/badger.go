// Package storage - BadgerEngine provides persistent storage using BadgerDB.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/nclustgen/pkg/config"
)

// Key prefixes for BadgerDB storage organization
// Using single-byte prefixes for efficiency
const (
	prefixNode          = byte(0x01) // nodes:nodeID -> Node
	prefixEdge          = byte(0x02) // edges:edgeID -> Edge
	prefixLabelIndex    = byte(0x03) // label:labelName:nodeID -> []byte{}
	prefixOutgoingIndex = byte(0x04) // outgoing:nodeID:edgeID -> []byte{}
)

// BadgerEngine provides persistent storage using BadgerDB.
//
// Single-item writes run in one transaction each. The bulk operations used
// to materialize a whole graph validate inside a read transaction and then
// write through a badger.WriteBatch, so graphs larger than one transaction
// can hold still load in a single call.
//
// Key Structure:
//   - Nodes: 0x01 + nodeID -> JSON(Node)
//   - Edges: 0x02 + edgeID -> JSON(Edge)
//   - Label Index: 0x03 + label + 0x00 + nodeID -> empty
//   - Outgoing Index: 0x04 + nodeID + 0x00 + edgeID -> empty
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("/path/to/graph")
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
type BadgerEngine struct {
	db *badger.DB

	// bulkMu serializes bulk loads so validation and the batch write see
	// the same state.
	bulkMu sync.Mutex

	mu     sync.RWMutex // Protects closed
	closed bool
}

// BadgerOptions configures the BadgerDB engine.
type BadgerOptions struct {
	// DataDir is the directory for storing data files.
	// Required unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode.
	// Useful for testing. Data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write.
	// Slower but more durable.
	SyncWrites bool

	// Logger for BadgerDB internal logging.
	// If nil, BadgerDB logging is silenced.
	Logger badger.Logger
}

// NewBadgerEngine creates a new persistent storage engine with default settings.
//
// Parameters:
//   - dataDir: Directory path for storing data files. Created if it doesn't exist.
//
// Thread Safety:
//
//	Safe for concurrent use from multiple goroutines.
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{
		DataDir: dataDir,
	})
}

// NewBadgerEngineWithOptions creates a BadgerEngine with custom configuration.
//
// Example - In-Memory Database for Testing:
//
//	engine, err := storage.NewBadgerEngineWithOptions(storage.BadgerOptions{
//		InMemory: true, // All data in RAM, lost on shutdown
//	})
//	defer engine.Close()
//
// Configuration Trade-offs:
//   - SyncWrites=true: Slower writes but maximum safety
//   - InMemory=true: Fastest but data lost on shutdown
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	if opts.DataDir == "" && !opts.InMemory {
		return nil, fmt.Errorf("%w: badger data directory is required", ErrInvalidData)
	}

	dir := opts.DataDir
	if opts.InMemory {
		dir = ""
	}
	badgerOpts := badger.DefaultOptions(dir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(opts.Logger)
	} else {
		// Use a quiet logger by default
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	// Graph values are small; keep the memory footprint modest.
	badgerOpts = badgerOpts.
		WithMemTableSize(16 << 20).     // 16MB instead of 64MB
		WithValueLogFileSize(64 << 20). // 64MB instead of 1GB
		WithNumMemtables(2).            // 2 instead of 5
		WithNumLevelZeroTables(2).      // 2 instead of 5
		WithNumLevelZeroTablesStall(4). // 4 instead of 15
		WithValueThreshold(1024).       // Store values > 1KB in value log
		WithBlockCacheSize(32 << 20).   // 32MB block cache
		WithIndexCacheSize(16 << 20)    // 16MB index cache

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	return &BadgerEngine{db: db}, nil
}

// NewBadgerEngineInMemory creates an in-memory BadgerDB for testing.
//
// Data is not persisted and is lost when the engine is closed.
func NewBadgerEngineInMemory() (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{
		InMemory: true,
	})
}

// Open returns the engine selected by cfg: a BadgerEngine when a directory
// is set or InMemory is requested, otherwise a MemoryEngine.
func Open(cfg config.StorageConfig) (Engine, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return NewMemoryEngine(), nil
	}
	return NewBadgerEngineWithOptions(BadgerOptions{
		DataDir:    cfg.Dir,
		InMemory:   cfg.InMemory,
		SyncWrites: cfg.SyncWrites,
	})
}

// ============================================================================
// Key encoding helpers
// ============================================================================

// nodeKey creates a key for storing a node.
func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

// edgeKey creates a key for storing an edge.
func edgeKey(id EdgeID) []byte {
	return append([]byte{prefixEdge}, []byte(id)...)
}

// labelIndexKey creates a key for the label index.
// Format: prefix + label (lowercase) + 0x00 + nodeID
func labelIndexKey(label string, nodeID NodeID) []byte {
	key := labelIndexPrefix(label)
	return append(key, []byte(nodeID)...)
}

// labelIndexPrefix returns the prefix for scanning all nodes with a label.
func labelIndexPrefix(label string) []byte {
	normalizedLabel := strings.ToLower(label)
	key := make([]byte, 0, 1+len(normalizedLabel)+1)
	key = append(key, prefixLabelIndex)
	key = append(key, []byte(normalizedLabel)...)
	key = append(key, 0x00)
	return key
}

func adjacencyKey(prefix byte, nodeID NodeID, edgeID EdgeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1+len(edgeID))
	key = append(key, prefix)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	key = append(key, []byte(edgeID)...)
	return key
}

// outgoingIndexKey creates a key for the outgoing edge index.
func outgoingIndexKey(nodeID NodeID, edgeID EdgeID) []byte {
	return adjacencyKey(prefixOutgoingIndex, nodeID, edgeID)
}

// extractSuffix returns the bytes after the first 0x00 separator.
// Format: prefix + nodeID|label + 0x00 + suffix
func extractSuffix(key []byte) string {
	for i := 1; i < len(key); i++ {
		if key[i] == 0x00 {
			return string(key[i+1:])
		}
	}
	return ""
}

// ============================================================================
// Engine implementation
// ============================================================================

func (b *BadgerEngine) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}
	return nil
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

// setter is satisfied by both *badger.Txn and *badger.WriteBatch.
type setter interface {
	Set(key, val []byte) error
}

func putNode(w setter, node *Node) error {
	data, err := encodeNode(node)
	if err != nil {
		return fmt.Errorf("failed to encode node: %w", err)
	}
	if err := w.Set(nodeKey(node.ID), data); err != nil {
		return err
	}
	for _, label := range node.Labels {
		if err := w.Set(labelIndexKey(label, node.ID), []byte{}); err != nil {
			return err
		}
	}
	return nil
}

func putEdge(w setter, edge *Edge) error {
	data, err := encodeEdge(edge)
	if err != nil {
		return fmt.Errorf("failed to encode edge: %w", err)
	}
	if err := w.Set(edgeKey(edge.ID), data); err != nil {
		return err
	}
	return w.Set(outgoingIndexKey(edge.StartNode, edge.ID), []byte{})
}

func getNode(txn *badger.Txn, id NodeID) (*Node, error) {
	item, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var node *Node
	err = item.Value(func(val []byte) error {
		var decodeErr error
		node, decodeErr = decodeNode(val)
		return decodeErr
	})
	return node, err
}

func getEdge(txn *badger.Txn, id EdgeID) (*Edge, error) {
	item, err := txn.Get(edgeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var edge *Edge
	err = item.Value(func(val []byte) error {
		var decodeErr error
		edge, decodeErr = decodeEdge(val)
		return decodeErr
	})
	return edge, err
}

// CreateNode creates a new node in persistent storage.
func (b *BadgerEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, nodeKey(node.ID))
		if err != nil {
			return err
		}
		if found {
			return ErrAlreadyExists
		}
		return putNode(txn, node)
	})
}

// GetNode retrieves a node by ID.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var node *Node
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		node, err = getNode(txn, id)
		return err
	})
	return node, err
}

// UpdateNode replaces an existing node and rewrites its label index.
func (b *BadgerEngine) UpdateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		existing, err := getNode(txn, node.ID)
		if err != nil {
			return err
		}

		// Remove old label indexes
		for _, label := range existing.Labels {
			if err := txn.Delete(labelIndexKey(label, node.ID)); err != nil {
				return err
			}
		}
		return putNode(txn, node)
	})
}

// CreateEdge creates a new edge between existing nodes.
func (b *BadgerEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		if err := validateEdge(txn, edge); err != nil {
			return err
		}
		return putEdge(txn, edge)
	})
}

func validateEdge(txn *badger.Txn, edge *Edge) error {
	found, err := exists(txn, edgeKey(edge.ID))
	if err != nil {
		return err
	}
	if found {
		return ErrAlreadyExists
	}
	for _, id := range []NodeID{edge.StartNode, edge.EndNode} {
		found, err := exists(txn, nodeKey(id))
		if err != nil {
			return err
		}
		if !found {
			return ErrInvalidEdge
		}
	}
	return nil
}

// GetEdge retrieves an edge by ID.
func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edge *Edge
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		edge, err = getEdge(txn, id)
		return err
	})
	return edge, err
}

// GetNodesByLabel returns all nodes with the given label, ordered by ID.
func (b *BadgerEngine) GetNodesByLabel(label string) ([]*Node, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var nodes []*Node
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := labelIndexPrefix(label)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			nodeID := NodeID(it.Item().KeyCopy(nil)[len(prefix):])
			if nodeID == "" {
				continue
			}
			node, err := getNode(txn, nodeID)
			if err != nil {
				return err
			}
			nodes = append(nodes, node)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// GetEdgesBetween returns all edges from startID to endID, ordered by ID.
func (b *BadgerEngine) GetEdgesBetween(startID, endID NodeID) ([]*Edge, error) {
	if startID == "" || endID == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edges []*Edge
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := adjacencyKey(prefixOutgoingIndex, startID, "")
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			edgeID := EdgeID(extractSuffix(it.Item().Key()))
			if edgeID == "" {
				continue
			}
			edge, err := getEdge(txn, edgeID)
			if err != nil {
				return err
			}
			if edge.EndNode == endID {
				edges = append(edges, edge)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// BulkCreateNodes creates many nodes, all or nothing.
func (b *BadgerEngine) BulkCreateNodes(nodes []*Node) error {
	if err := b.checkOpen(); err != nil {
		return err
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
		if _, dup := seen[node.ID]; dup {
			return ErrAlreadyExists
		}
		seen[node.ID] = struct{}{}
	}

	b.bulkMu.Lock()
	defer b.bulkMu.Unlock()

	err := b.db.View(func(txn *badger.Txn) error {
		for _, node := range nodes {
			found, err := exists(txn, nodeKey(node.ID))
			if err != nil {
				return err
			}
			if found {
				return ErrAlreadyExists
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, node := range nodes {
		if err := putNode(wb, node); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// BulkCreateEdges creates many edges, all or nothing.
func (b *BadgerEngine) BulkCreateEdges(edges []*Edge) error {
	if err := b.checkOpen(); err != nil {
		return err
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
		if _, dup := seen[edge.ID]; dup {
			return ErrAlreadyExists
		}
		seen[edge.ID] = struct{}{}
	}

	b.bulkMu.Lock()
	defer b.bulkMu.Unlock()

	err := b.db.View(func(txn *badger.Txn) error {
		for _, edge := range edges {
			if err := validateEdge(txn, edge); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, edge := range edges {
		if err := putEdge(wb, edge); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// ============================================================================
// Stats and Lifecycle
// ============================================================================

func (b *BadgerEngine) countPrefix(prefix byte) (int64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}

	var count int64
	err := b.db.View(func(txn *badger.Txn) error {
		p := []byte{prefix}
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// NodeCount returns the total number of nodes.
func (b *BadgerEngine) NodeCount() (int64, error) {
	return b.countPrefix(prefixNode)
}

// EdgeCount returns the total number of edges.
func (b *BadgerEngine) EdgeCount() (int64, error) {
	return b.countPrefix(prefixEdge)
}

// Close closes the BadgerDB database.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	return b.db.Close()
}

// Sync forces a sync of all data to disk.
func (b *BadgerEngine) Sync() error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.db.Sync()
}

// ============================================================================
// Streaming
// ============================================================================

// StreamNodes iterates through all nodes one at a time without loading all
// into memory.
func (b *BadgerEngine) StreamNodes(ctx context.Context, fn func(node *Node) error) error {
	return b.stream(ctx, prefixNode, func(val []byte) error {
		node, err := decodeNode(val)
		if err != nil {
			return err
		}
		return fn(node)
	})
}

// StreamEdges iterates through all edges one at a time.
func (b *BadgerEngine) StreamEdges(ctx context.Context, fn func(edge *Edge) error) error {
	return b.stream(ctx, prefixEdge, func(val []byte) error {
		edge, err := decodeEdge(val)
		if err != nil {
			return err
		}
		return fn(edge)
	})
}

func (b *BadgerEngine) stream(ctx context.Context, prefix byte, fn func(val []byte) error) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.View(func(txn *badger.Txn) error {
		p := []byte{prefix}
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.PrefetchSize = 10
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			// Check context cancellation
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ StreamingEngine = (*BadgerEngine)(nil)
