// Package ifmgr caches the device's interface table for one reconcile pass
// so names resolve to indexes without a device round trip per lookup.
package ifmgr

import (
	"sync"

	"inet.af/netaddr"

	"github.com/veesix-networks/vppifd/pkg/models"
)

type Manager struct {
	mu        sync.RWMutex
	byIfIndex map[uint32]*models.Interface
	byName    map[string]*models.Interface
}

func New() *Manager {
	return &Manager{
		byIfIndex: make(map[uint32]*models.Interface),
		byName:    make(map[string]*models.Interface),
	}
}

// Rebuild replaces the cache with ifaces.
func (m *Manager) Rebuild(ifaces []models.Interface) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byIfIndex = make(map[uint32]*models.Interface, len(ifaces))
	m.byName = make(map[string]*models.Interface, len(ifaces))
	for i := range ifaces {
		m.addLocked(ifaces[i].Clone())
	}
}

func (m *Manager) Add(iface models.Interface) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(iface.Clone())
}

func (m *Manager) addLocked(iface models.Interface) {
	if old, ok := m.byName[iface.Name]; ok {
		delete(m.byIfIndex, old.Index)
	}
	m.byIfIndex[iface.Index] = &iface
	if iface.Name != "" {
		m.byName[iface.Name] = &iface
	}
}

func (m *Manager) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if iface, ok := m.byName[name]; ok {
		delete(m.byName, name)
		delete(m.byIfIndex, iface.Index)
	}
}

func (m *Manager) Get(ifIndex uint32) (models.Interface, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	iface, ok := m.byIfIndex[ifIndex]
	if !ok {
		return models.Interface{}, false
	}
	return iface.Clone(), true
}

// GetByName also matches the af-packet form "host-<name>" the device gives
// interfaces created over a Linux link.
func (m *Manager) GetByName(name string) (models.Interface, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if iface, ok := m.lookupLocked(name); ok {
		return iface.Clone(), true
	}
	return models.Interface{}, false
}

func (m *Manager) GetIfIndex(name string) (uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if iface, ok := m.lookupLocked(name); ok {
		return iface.Index, true
	}
	return 0, false
}

func (m *Manager) lookupLocked(name string) (*models.Interface, bool) {
	if iface, ok := m.byName[name]; ok {
		return iface, true
	}
	iface, ok := m.byName["host-"+name]
	return iface, ok
}

// HasAddress reports whether the cached interface already carries p.
func (m *Manager) HasAddress(name string, p netaddr.IPPrefix) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	iface, ok := m.lookupLocked(name)
	return ok && iface.HasAddress(p)
}

func (m *Manager) AddAddress(name string, p netaddr.IPPrefix) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if iface, ok := m.lookupLocked(name); ok {
		iface.AddAddress(p)
	}
}

func (m *Manager) RemoveAddress(name string, p netaddr.IPPrefix) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if iface, ok := m.lookupLocked(name); ok {
		iface.RemoveAddress(p)
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byName)
}

func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byIfIndex = make(map[uint32]*models.Interface)
	m.byName = make(map[string]*models.Interface)
}
