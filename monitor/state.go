// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
)

// PropertyValue is either a concrete D-Bus value or the Invalidated
// sentinel recorded when the service signaled a change without
// delivering the new value.
type PropertyValue struct {
	variant     dbus.Variant
	invalidated bool
}

func concreteValue(v dbus.Variant) PropertyValue {
	return PropertyValue{variant: v}
}

func invalidatedValue() PropertyValue {
	return PropertyValue{invalidated: true}
}

func (p PropertyValue) IsInvalidated() bool {
	return p.invalidated
}

func (p PropertyValue) Variant() dbus.Variant {
	return p.variant
}

// equal compares by structural equality of the underlying values.
// Invalidated compares unequal to everything except another Invalidated.
func (p PropertyValue) equal(o PropertyValue) bool {
	if p.invalidated || o.invalidated {
		return p.invalidated && o.invalidated
	}
	return reflect.DeepEqual(p.variant.Value(), o.variant.Value())
}

func (p PropertyValue) String() string {
	if p.invalidated {
		return "Invalidated()"
	}
	return p.variant.String()
}

// propertyMap maps property name to its last known value.
type propertyMap map[string]PropertyValue

func propsFromWire(in map[string]dbus.Variant) propertyMap {
	out := make(propertyMap, len(in))
	for name, v := range in {
		out[name] = concreteValue(v)
	}
	return out
}

// ifaceEntry is either a property map or the missing-interface marker
// recorded when a PropertiesChanged signal arrives for an interface the
// monitor has not yet seen added.
type ifaceEntry struct {
	missing bool
	props   propertyMap
}

func realIface(props propertyMap) ifaceEntry {
	return ifaceEntry{props: props}
}

func missingIface() ifaceEntry {
	return ifaceEntry{missing: true}
}

// objectGraph maps object path -> interface name -> interface entry.
// An object path present in the graph always has at least one interface;
// when the last interface goes away the entry goes with it.
type objectGraph map[dbus.ObjectPath]map[string]ifaceEntry

// exportIface converts an entry for reporting; a missing entry becomes a
// nil map.
func exportIface(e ifaceEntry) map[string]PropertyValue {
	if e.missing {
		return nil
	}
	return e.props
}

func exportObject(ifaces map[string]ifaceEntry) map[string]map[string]PropertyValue {
	out := make(map[string]map[string]PropertyValue, len(ifaces))
	for name, e := range ifaces {
		out[name] = exportIface(e)
	}
	return out
}

// formatProps renders a property map with sorted keys so that
// discrepancy output is deterministic.
func formatProps(props map[string]PropertyValue) string {
	if props == nil {
		return "MissingInterface()"
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %s", k, props[k])
	}
	sb.WriteByte('}')
	return sb.String()
}

func formatObject(ifaces map[string]map[string]PropertyValue) string {
	names := make([]string, 0, len(ifaces))
	for name := range ifaces {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %s", name, formatProps(ifaces[name]))
	}
	sb.WriteByte('}')
	return sb.String()
}
