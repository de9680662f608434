// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/stratis-storage/testing/logger"
)

// emitsChangedAnnotation declares, per property, how the service
// notifies about value changes.
const emitsChangedAnnotation = "org.freedesktop.DBus.Property.EmitsChangedSignal"

type changeContract int

const (
	// emitsValue: PropertiesChanged carries the new value ("true", the
	// default when the annotation is absent).
	emitsValue changeContract = iota
	// emitsInvalidation: only the property name is signaled
	// ("invalidates").
	emitsInvalidation
	// emitsConst: the property never changes ("const") or never signals
	// ("false").
	emitsConst
	// emitsUnknown: unrecognized annotation code; change-law enforcement
	// is skipped for such properties.
	emitsUnknown
)

func changeContractFromCode(code string) changeContract {
	switch code {
	case "true":
		return emitsValue
	case "invalidates":
		return emitsInvalidation
	case "const", "false":
		return emitsConst
	default:
		return emitsUnknown
	}
}

// contractReader resolves per-property change contracts from the
// service's introspection data, caching the parsed document per object
// path for the run.
type contractReader struct {
	client busClient
	log    *logger.Logger
	cache  map[dbus.ObjectPath]*introspect.Node
}

func newContractReader(client busClient, log *logger.Logger) *contractReader {
	return &contractReader{
		client: client,
		log:    log,
		cache:  make(map[dbus.ObjectPath]*introspect.Node),
	}
}

func (r *contractReader) node(ctx context.Context, path dbus.ObjectPath) (*introspect.Node, error) {
	if node, ok := r.cache[path]; ok {
		return node, nil
	}

	data, err := r.client.introspect(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("Introspect on %s: %w", path, err)
	}

	var node introspect.Node
	if err := xml.Unmarshal([]byte(data), &node); err != nil {
		return nil, fmt.Errorf("parse introspection data for %s: %w", path, err)
	}

	r.cache[path] = &node
	return &node, nil
}

func (r *contractReader) propertyContract(ctx context.Context, path dbus.ObjectPath, iface, property string) (changeContract, error) {
	node, err := r.node(ctx, path)
	if err != nil {
		return emitsValue, err
	}

	for _, ifn := range node.Interfaces {
		if ifn.Name != iface {
			continue
		}
		for _, prop := range ifn.Properties {
			if prop.Name != property {
				continue
			}
			for _, ann := range prop.Annotations {
				if ann.Name != emitsChangedAnnotation {
					continue
				}
				contract := changeContractFromCode(ann.Value)
				if contract == emitsUnknown {
					r.log.Warningf("unrecognized EmitsChangedSignal code %q for %s.%s on %s", ann.Value, iface, property, path)
				}
				return contract, nil
			}
		}
	}

	return emitsValue, nil
}
