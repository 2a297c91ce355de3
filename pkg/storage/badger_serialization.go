// Package storage - Serialization helpers for BadgerDB.
package storage

import (
	"encoding/json"
	"fmt"
)

// encodeNode converts a Node to JSON bytes for BadgerDB storage.
func encodeNode(node *Node) ([]byte, error) {
	return json.Marshal(node)
}

// decodeNode converts JSON bytes back to a Node.
//
// Numeric properties come back as float64 regardless of the type they were
// stored with; read them through the convert package.
func decodeNode(data []byte) (*Node, error) {
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("unmarshaling node: %w", err)
	}
	return &node, nil
}

// encodeEdge converts an Edge to JSON bytes for BadgerDB storage.
func encodeEdge(edge *Edge) ([]byte, error) {
	return json.Marshal(edge)
}

// decodeEdge converts JSON bytes back to an Edge.
func decodeEdge(data []byte) (*Edge, error) {
	var edge Edge
	if err := json.Unmarshal(data, &edge); err != nil {
		return nil, fmt.Errorf("unmarshaling edge: %w", err)
	}
	return &edge, nil
}
