// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"strings"

	"github.com/godbus/dbus/v5"
)

// The three handlers below fold notifications into the shadow graph.
// They run on the monitor's single dispatch goroutine, so no locking is
// needed; see Monitor.loop.

func (m *Monitor) applyInterfacesAdded(path dbus.ObjectPath, added map[string]map[string]dbus.Variant) {
	filtered := make(map[string]ifaceEntry, len(added))
	for name, props := range added {
		if !m.interfaceRE.MatchString(name) {
			continue
		}
		if path == m.managerPath && !m.topInterfaces[name] {
			continue
		}
		filtered[name] = realIface(propsFromWire(props))
	}

	if existing, ok := m.objects[path]; ok {
		// Already-known interfaces not named in the signal are preserved.
		for name, entry := range filtered {
			existing[name] = entry
		}
	} else if len(filtered) > 0 {
		m.objects[path] = filtered
	}
}

func (m *Monitor) applyInterfacesRemoved(path dbus.ObjectPath, names []string) {
	ifaces, ok := m.objects[path]
	if !ok {
		return
	}

	for _, name := range names {
		delete(ifaces, name)
	}

	// InterfacesRemoved doubles as the object-removal notification on
	// this bus: when the last interface is gone, the object is gone.
	if len(ifaces) == 0 {
		delete(m.objects, path)
	}
}

func (m *Monitor) applyPropertiesChanged(path dbus.ObjectPath, iface string, changed map[string]dbus.Variant, invalidated []string) {
	if !strings.HasPrefix(string(path), string(m.managerPath)) {
		return
	}

	ifaces, ok := m.objects[path]
	if !ok {
		// The InterfacesAdded for this object has not been processed yet
		// (or the object is outside the tracked set).
		m.log.Warningf("properties changed on %s for unknown object %s, dropped", iface, path)
		return
	}

	entry, ok := ifaces[iface]
	if !ok {
		if path == m.managerPath && !m.topInterfaces[iface] {
			return
		}
		if !m.interfaceRE.MatchString(iface) {
			return
		}
		// Record the race so the differ reports it instead of losing it.
		ifaces[iface] = missingIface()
		return
	}

	if entry.missing {
		return
	}

	// Changed values first, invalidations second: an invalidation wins
	// when one notification names the same property in both lists.
	for prop, value := range changed {
		entry.props[prop] = concreteValue(value)
	}
	for _, prop := range invalidated {
		entry.props[prop] = invalidatedValue()
	}
}
