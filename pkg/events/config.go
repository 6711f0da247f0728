package events

import (
	"maps"
	"slices"

	"github.com/grovetools/extcore/config"
	"github.com/grovetools/extcore/errors"
)

// DescriptorFromConfig converts a configured listener into a descriptor.
// The listener itself is built by the catalog's factory on registration.
func DescriptorFromConfig(lc config.ListenerConfig) (Descriptor, error) {
	cat, err := ParseCategory(lc.Category)
	if err != nil {
		return Descriptor{}, errors.ListenerInvalid(lc.Name, "bad category", err)
	}
	return Descriptor{
		Name:       lc.Name,
		Category:   cat,
		Enabled:    lc.IsEnabled(),
		Priority:   lc.Priority,
		Events:     slices.Clone(lc.Events),
		Kind:       lc.Kind,
		Options:    maps.Clone(lc.Options),
		RetryCount: lc.RetryCount,
	}, nil
}

// RegisterConfigured registers every configured listener with c, in order.
// Registration stops at the first invalid listener.
func RegisterConfigured(c *Catalog, listeners []config.ListenerConfig) error {
	for _, lc := range listeners {
		d, err := DescriptorFromConfig(lc)
		if err != nil {
			return err
		}
		if err := c.Register(d); err != nil {
			return err
		}
	}
	return nil
}
