// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"fmt"
	"sort"

	"github.com/godbus/dbus/v5"
)

// Discrepancy is a single typed difference between the shadow object
// graph and a freshly fetched snapshot. The rendered form is one line,
// with enough structure to locate the root cause without re-running.
type Discrepancy interface {
	fmt.Stringer
}

// AddedProperty: property appears in the snapshot but not in the shadow.
type AddedProperty struct {
	Path      dbus.ObjectPath
	Interface string
	Property  string
	NewValue  PropertyValue
}

func (d AddedProperty) String() string {
	return fmt.Sprintf("Added Property: %s %s %s %s", d.Path, d.Interface, d.Property, d.NewValue)
}

// RemovedProperty: property appears in the shadow but not in the snapshot.
type RemovedProperty struct {
	Path      dbus.ObjectPath
	Interface string
	Property  string
	OldValue  PropertyValue
}

func (d RemovedProperty) String() string {
	return fmt.Sprintf("Removed Property: %s %s %s %s", d.Path, d.Interface, d.Property, d.OldValue)
}

// DifferentProperty: a property declared to signal its new value differs
// between shadow and snapshot.
type DifferentProperty struct {
	Path      dbus.ObjectPath
	Interface string
	Property  string
	OldValue  PropertyValue
	NewValue  PropertyValue
}

func (d DifferentProperty) String() string {
	return fmt.Sprintf("Different Property: %s %s %s %s -> %s", d.Path, d.Interface, d.Property, d.OldValue, d.NewValue)
}

// NotInvalidatedProperty: a property declared invalidation-only changed
// value without having been invalidated first.
type NotInvalidatedProperty struct {
	Path      dbus.ObjectPath
	Interface string
	Property  string
	OldValue  PropertyValue
	NewValue  PropertyValue
}

func (d NotInvalidatedProperty) String() string {
	return fmt.Sprintf("Not Invalidated Property: %s %s %s %s -> %s", d.Path, d.Interface, d.Property, d.OldValue, d.NewValue)
}

// ChangedProperty: a property declared constant changed anyway.
type ChangedProperty struct {
	Path      dbus.ObjectPath
	Interface string
	Property  string
	OldValue  PropertyValue
	NewValue  PropertyValue
}

func (d ChangedProperty) String() string {
	return fmt.Sprintf("Changed Property: %s %s %s %s -> %s", d.Path, d.Interface, d.Property, d.OldValue, d.NewValue)
}

// AddedInterface: interface appears in the snapshot but not the shadow.
type AddedInterface struct {
	Path      dbus.ObjectPath
	Interface string
	NewValue  map[string]PropertyValue
}

func (d AddedInterface) String() string {
	return fmt.Sprintf("Added Interface: %s %s %s", d.Path, d.Interface, formatProps(d.NewValue))
}

// RemovedInterface: interface appears in the shadow but not the snapshot.
type RemovedInterface struct {
	Path      dbus.ObjectPath
	Interface string
	OldValue  map[string]PropertyValue
}

func (d RemovedInterface) String() string {
	return fmt.Sprintf("Removed Interface: %s %s %s", d.Path, d.Interface, formatProps(d.OldValue))
}

// MissingInterface: a property update arrived for this interface before
// its InterfacesAdded, so the shadow never held real values for it.
type MissingInterface struct {
	Path      dbus.ObjectPath
	Interface string
}

func (d MissingInterface) String() string {
	return fmt.Sprintf("Missing Interface: %s %s", d.Path, d.Interface)
}

// AddedObjectPath: object appears in the snapshot but not the shadow.
type AddedObjectPath struct {
	Path     dbus.ObjectPath
	NewValue map[string]map[string]PropertyValue
}

func (d AddedObjectPath) String() string {
	return fmt.Sprintf("Added Object Path: %s %s", d.Path, formatObject(d.NewValue))
}

// RemovedObjectPath: object appears in the shadow but not the snapshot.
type RemovedObjectPath struct {
	Path     dbus.ObjectPath
	OldValue map[string]map[string]PropertyValue
}

func (d RemovedObjectPath) String() string {
	return fmt.Sprintf("Removed Object Path: %s %s", d.Path, formatObject(d.OldValue))
}

// compare diffs the shadow graph against a snapshot, object level first,
// then interfaces, then properties. The result is ordered by rendered
// form for reproducible output.
func (m *Monitor) compare(ctx context.Context, shadow, snapshot objectGraph) ([]Discrepancy, error) {
	var diffs []Discrepancy

	for path, oldIfaces := range shadow {
		if _, ok := snapshot[path]; !ok {
			diffs = append(diffs, RemovedObjectPath{Path: path, OldValue: exportObject(oldIfaces)})
		}
	}

	for path, newIfaces := range snapshot {
		oldIfaces, ok := shadow[path]
		if !ok {
			diffs = append(diffs, AddedObjectPath{Path: path, NewValue: exportObject(newIfaces)})
			continue
		}

		for name, oldEntry := range oldIfaces {
			if _, ok := newIfaces[name]; !ok {
				diffs = append(diffs, RemovedInterface{Path: path, Interface: name, OldValue: exportIface(oldEntry)})
			}
		}

		for name, newEntry := range newIfaces {
			oldEntry, ok := oldIfaces[name]
			if !ok {
				diffs = append(diffs, AddedInterface{Path: path, Interface: name, NewValue: exportIface(newEntry)})
				continue
			}

			if oldEntry.missing {
				diffs = append(diffs, MissingInterface{Path: path, Interface: name})
				continue
			}

			propDiffs, err := m.compareProps(ctx, path, name, oldEntry.props, newEntry.props)
			if err != nil {
				return nil, err
			}
			diffs = append(diffs, propDiffs...)
		}
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].String() < diffs[j].String() })

	return diffs, nil
}

func (m *Monitor) compareProps(ctx context.Context, path dbus.ObjectPath, iface string, oldProps, newProps propertyMap) ([]Discrepancy, error) {
	var diffs []Discrepancy

	for key, oldValue := range oldProps {
		if _, ok := newProps[key]; !ok {
			diffs = append(diffs, RemovedProperty{Path: path, Interface: iface, Property: key, OldValue: oldValue})
		}
	}

	for key, newValue := range newProps {
		oldValue, ok := oldProps[key]
		if !ok {
			diffs = append(diffs, AddedProperty{Path: path, Interface: iface, Property: key, NewValue: newValue})
			continue
		}

		if oldValue.equal(newValue) {
			continue
		}

		contract, err := m.contracts.propertyContract(ctx, path, iface, key)
		if err != nil {
			return nil, err
		}

		switch contract {
		case emitsValue:
			diffs = append(diffs, DifferentProperty{Path: path, Interface: iface, Property: key, OldValue: oldValue, NewValue: newValue})
		case emitsInvalidation:
			// A properly invalidated value differing from the snapshot is
			// the compliant case; only a never-invalidated stale value is
			// a violation.
			if !oldValue.IsInvalidated() {
				diffs = append(diffs, NotInvalidatedProperty{Path: path, Interface: iface, Property: key, OldValue: oldValue, NewValue: newValue})
			}
		case emitsConst:
			diffs = append(diffs, ChangedProperty{Path: path, Interface: iface, Property: key, OldValue: oldValue, NewValue: newValue})
		case emitsUnknown:
			// Unenforceable without a recognized declaration.
		}
	}

	return diffs, nil
}
