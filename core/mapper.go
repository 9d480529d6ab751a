package core

import (
	"fmt"
	"strings"
)

// AttributeMapper translates attribute documents between the canonical
// (protocol) schema and the storage schema using an immutable FieldMapping.
// Both directions are pure: entries whose source path is absent from the
// input are omitted from the output (partial-update semantics), and input
// fields with no declared mapping entry are dropped. An entry's transform
// describes the canonical-to-storage conversion; reads run the inbound
// counterpart so every stored value maps back out.
type AttributeMapper struct{}

func NewAttributeMapper() *AttributeMapper {
	return &AttributeMapper{}
}

func (m *AttributeMapper) MapOutbound(canonical map[string]any, mapping FieldMapping) (map[string]any, error) {
	return m.translate(canonical, mapping, false)
}

func (m *AttributeMapper) MapInbound(record map[string]any, mapping FieldMapping) (map[string]any, error) {
	return m.translate(record, mapping, true)
}

func (m *AttributeMapper) translate(input map[string]any, mapping FieldMapping, inbound bool) (map[string]any, error) {
	if m == nil {
		return nil, fmt.Errorf("core: attribute mapper is required")
	}
	if err := mapping.Validate(); err != nil {
		return nil, NewMappingError(err.Error())
	}

	out := make(map[string]any)
	for _, raw := range mapping.Entries {
		entry := raw.Normalize()
		sourcePath, targetPath := entry.CanonicalPath, entry.StoragePath
		if inbound {
			sourcePath, targetPath = entry.StoragePath, entry.CanonicalPath
		}
		value, present := lookupPath(input, sourcePath)
		if !present {
			continue
		}
		transform := applyValueTransform
		if inbound {
			transform = applyInboundTransform
		}
		transformed, err := transform(entry.Transform, value)
		if err != nil {
			return nil, NewMappingError(
				fmt.Sprintf("core: transform %q failed for %q: %v", entry.Transform, sourcePath, err),
			)
		}
		if err := setPath(out, targetPath, transformed); err != nil {
			return nil, NewMappingError(err.Error())
		}
	}
	return out, nil
}

// OutboundFilterValue resolves the storage field and transformed value for a
// single canonical attribute, for use in storage predicates.
func (m *AttributeMapper) OutboundFilterValue(mapping FieldMapping, canonicalPath string, raw string) (string, any, bool, error) {
	entry, found := mapping.EntryForCanonical(canonicalPath)
	if !found {
		return "", nil, false, nil
	}
	value, err := applyValueTransform(entry.Transform, raw)
	if err != nil {
		return "", nil, false, NewMappingError(
			fmt.Sprintf("core: transform %q failed for filter on %q: %v", entry.Transform, canonicalPath, err),
		)
	}
	return entry.StoragePath, value, true, nil
}

func lookupPath(input map[string]any, path string) (any, bool) {
	if input == nil || path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	current := input
	for i, segment := range segments {
		value, ok := current[segment]
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			return value, true
		}
		next, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

func setPath(target map[string]any, path string, value any) error {
	if path == "" {
		return fmt.Errorf("core: empty target path")
	}
	segments := strings.Split(path, ".")
	current := target
	for i, segment := range segments {
		if i == len(segments)-1 {
			current[segment] = value
			return nil
		}
		existing, ok := current[segment]
		if !ok {
			next := make(map[string]any)
			current[segment] = next
			current = next
			continue
		}
		next, ok := existing.(map[string]any)
		if !ok {
			return fmt.Errorf("core: target path %q collides with non-object field %q", path, segment)
		}
		current = next
	}
	return nil
}
