// Package gpu resolves where a tensor graph is placed.
//
// A Placement is either local (host memory) or accelerated with a device
// index. Accelerated placement is only satisfied by a Device registered with
// a Manager; a pure-Go build discovers none, so bindings that own real
// devices register them at startup. Resolving an accelerated placement
// without a matching device fails with ErrDeviceUnavailable, which callers
// propagate unchanged.
//
// Usage:
//
//	p, err := gpu.ParsePlacement("accelerated", 0)
//	if err != nil {
//		return err
//	}
//	dev, err := gpu.DefaultManager().Resolve(p)
package gpu

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/orneryd/nclustgen/pkg/config"
)

// ErrDeviceUnavailable is returned when an accelerated placement names a
// device that is not registered.
var ErrDeviceUnavailable = errors.New("gpu: accelerated device unavailable")

// Kind is the placement target.
type Kind string

const (
	Local       Kind = "local"
	Accelerated Kind = "accelerated"
)

// Placement selects host memory or an accelerator.
type Placement struct {
	Kind  Kind
	Index int
}

// LocalPlacement is the default placement.
var LocalPlacement = Placement{Kind: Local}

// IsLocal reports whether p targets host memory.
func (p Placement) IsLocal() bool {
	return p.Kind == "" || p.Kind == Local
}

// String renders "local" or "accelerated:<index>".
func (p Placement) String() string {
	if p.IsLocal() {
		return string(Local)
	}
	return fmt.Sprintf("%s:%d", Accelerated, p.Index)
}

// ParsePlacement parses a placement name. "local" and "cpu" (or empty)
// select host memory; "accelerated", "gpu" and "cuda" select device index.
// A ":<n>" suffix overrides index, so "cuda:1" is device 1.
func ParsePlacement(name string, index int) (Placement, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if base, suffix, ok := strings.Cut(name, ":"); ok {
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 0 {
			return Placement{}, fmt.Errorf("%w: invalid device index in %q", config.ErrInvalidConfig, name)
		}
		name, index = base, n
	}

	switch name {
	case "", "local", "cpu":
		return LocalPlacement, nil
	case "accelerated", "gpu", "cuda":
		if index < 0 {
			return Placement{}, fmt.Errorf("%w: negative device index %d", config.ErrInvalidConfig, index)
		}
		return Placement{Kind: Accelerated, Index: index}, nil
	}
	return Placement{}, fmt.Errorf("%w: unknown placement %q", config.ErrInvalidConfig, name)
}

// Device describes an accelerator.
type Device struct {
	Index       int
	Name        string
	MemoryBytes uint64
}

// Manager tracks the registered accelerators.
type Manager struct {
	mu      sync.RWMutex
	devices map[int]Device
}

// NewManager returns a manager holding devices.
func NewManager(devices ...Device) *Manager {
	m := &Manager{devices: make(map[int]Device, len(devices))}
	for _, d := range devices {
		m.devices[d.Index] = d
	}
	return m
}

var (
	defaultManager     *Manager
	defaultManagerOnce sync.Once
)

// DefaultManager returns the process-wide manager. It starts empty.
func DefaultManager() *Manager {
	defaultManagerOnce.Do(func() {
		defaultManager = NewManager()
	})
	return defaultManager
}

// Register adds or replaces a device.
func (m *Manager) Register(d Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[d.Index] = d
}

// Unregister removes the device with the given index.
func (m *Manager) Unregister(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.devices, index)
}

// Devices returns the registered devices ordered by index.
func (m *Manager) Devices() []Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// IsAvailable reports whether any accelerator is registered.
func (m *Manager) IsAvailable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices) > 0
}

// Resolve returns the device for p. Local placement resolves to nil.
func (m *Manager) Resolve(p Placement) (*Device, error) {
	if p.IsLocal() {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[p.Index]
	if !ok {
		return nil, fmt.Errorf("%w: %s (%d registered)", ErrDeviceUnavailable, p, len(m.devices))
	}
	return &d, nil
}
