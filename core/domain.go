package core

import (
	"fmt"
	"strings"
)

// Canonical attribute names the connector treats specially. Everything else
// flows through the field-mapping table untouched.
const (
	AttributeID          = "id"
	AttributeUserName    = "userName"
	AttributeDisplayName = "displayName"
	AttributeExternalID  = "externalId"
	AttributeMembers     = "members"
	AttributeGroups      = "groups"
)

const (
	recordKeyField     = "id"
	recordMembersField = "members"
)

type EntityType string

const (
	EntityUser  EntityType = "user"
	EntityGroup EntityType = "group"
)

type PredicateKind string

const (
	PredicateAll      PredicateKind = "all"
	PredicateEquality PredicateKind = "equality"
	PredicateRaw      PredicateKind = "raw"
)

// QueryPredicate is the inbound query shape: unconditional listing, a single
// attribute equality test, or an opaque raw filter expression. At most one
// variant may be populated.
type QueryPredicate struct {
	Kind      PredicateKind
	Attribute string
	Operator  string
	Value     string
	RawFilter string
}

func AllPredicate() QueryPredicate {
	return QueryPredicate{Kind: PredicateAll}
}

func EqualityPredicate(attribute string, operator string, value string) QueryPredicate {
	return QueryPredicate{
		Kind:      PredicateEquality,
		Attribute: strings.TrimSpace(attribute),
		Operator:  strings.TrimSpace(strings.ToLower(operator)),
		Value:     strings.TrimSpace(value),
	}
}

func RawPredicate(expression string) QueryPredicate {
	return QueryPredicate{Kind: PredicateRaw, RawFilter: strings.TrimSpace(expression)}
}

func (p QueryPredicate) Normalize() QueryPredicate {
	p.Attribute = strings.TrimSpace(p.Attribute)
	p.Operator = strings.TrimSpace(strings.ToLower(p.Operator))
	p.Value = strings.TrimSpace(p.Value)
	p.RawFilter = strings.TrimSpace(p.RawFilter)
	if p.Kind == "" {
		switch {
		case p.RawFilter != "":
			p.Kind = PredicateRaw
		case p.Attribute != "" || p.Operator != "":
			p.Kind = PredicateEquality
		default:
			p.Kind = PredicateAll
		}
	}
	return p
}

func (p QueryPredicate) Validate() error {
	hasTriplet := p.Attribute != "" || p.Operator != "" || p.Value != ""
	hasRaw := p.RawFilter != ""
	if hasTriplet && hasRaw {
		return fmt.Errorf("core: predicate cannot carry both an attribute expression and a raw filter")
	}
	switch p.Kind {
	case PredicateAll:
		if hasTriplet || hasRaw {
			return fmt.Errorf("core: match-all predicate must be empty")
		}
	case PredicateEquality:
		if p.Attribute == "" || p.Operator == "" {
			return fmt.Errorf("core: equality predicate requires attribute and operator")
		}
	case PredicateRaw:
		if !hasRaw {
			return fmt.Errorf("core: raw predicate requires a filter expression")
		}
	default:
		return fmt.Errorf("core: unknown predicate kind %q", p.Kind)
	}
	return nil
}

func (p QueryPredicate) IsAll() bool {
	return p.Normalize().Kind == PredicateAll
}

type StorageFilterKind string

const (
	StorageFilterAll            StorageFilterKind = "all"
	StorageFilterEquality       StorageFilterKind = "equality"
	StorageFilterMemberContains StorageFilterKind = "member_contains"
)

// StorageFilter is the storage-layer predicate the translator produces.
// MemberContains matches group records whose member set holds MemberKey.
type StorageFilter struct {
	Kind      StorageFilterKind
	Field     string
	Value     any
	MemberKey string
}

func MatchAllFilter() StorageFilter {
	return StorageFilter{Kind: StorageFilterAll}
}

func EqualityFilter(field string, value any) StorageFilter {
	return StorageFilter{Kind: StorageFilterEquality, Field: strings.TrimSpace(field), Value: value}
}

func MemberContainsFilter(memberKey string) StorageFilter {
	return StorageFilter{Kind: StorageFilterMemberContains, MemberKey: strings.TrimSpace(memberKey)}
}

// MappingEntry declares one translated attribute: the canonical path, the
// storage path it maps to, and an optional value transform applied whenever
// the value crosses the boundary in either direction.
type MappingEntry struct {
	CanonicalPath string `koanf:"canonical_path" mapstructure:"canonical_path"`
	StoragePath   string `koanf:"storage_path" mapstructure:"storage_path"`
	Transform     string `koanf:"transform" mapstructure:"transform"`
}

func (e MappingEntry) Normalize() MappingEntry {
	e.CanonicalPath = strings.TrimSpace(e.CanonicalPath)
	e.StoragePath = strings.TrimSpace(e.StoragePath)
	e.Transform = normalizeTransform(e.Transform)
	return e
}

func (e MappingEntry) Validate() error {
	if e.CanonicalPath == "" {
		return fmt.Errorf("core: mapping entry canonical path is required")
	}
	if e.StoragePath == "" {
		return fmt.Errorf("core: mapping entry storage path is required")
	}
	if !isSupportedTransform(e.Transform) {
		return fmt.Errorf("core: mapping entry %q declares unsupported transform %q", e.CanonicalPath, e.Transform)
	}
	return nil
}

// reservedStoragePaths are owned by the connector or the storage engine and
// may never be mapping targets: the record key is storage-generated and the
// member set belongs to the membership synchronizer.
var reservedStoragePaths = map[string]struct{}{
	recordKeyField:     {},
	recordMembersField: {},
	"created_at":       {},
	"updated_at":       {},
}

// reservedCanonicalPaths are derived on read and may never be mapping targets.
var reservedCanonicalPaths = map[string]struct{}{
	AttributeID:      {},
	AttributeMembers: {},
	AttributeGroups:  {},
}

// FieldMapping is the immutable, ordered attribute translation table. It is
// loaded once from configuration and shared read-only across operations.
type FieldMapping struct {
	Entries []MappingEntry
}

func NewFieldMapping(entries ...MappingEntry) (FieldMapping, error) {
	normalized := make([]MappingEntry, 0, len(entries))
	for _, entry := range entries {
		normalized = append(normalized, entry.Normalize())
	}
	mapping := FieldMapping{Entries: normalized}
	if err := mapping.Validate(); err != nil {
		return FieldMapping{}, err
	}
	return mapping, nil
}

func (m FieldMapping) Validate() error {
	if len(m.Entries) == 0 {
		return fmt.Errorf("core: field mapping requires at least one entry")
	}
	canonicalSeen := make(map[string]struct{}, len(m.Entries))
	storageSeen := make(map[string]struct{}, len(m.Entries))
	for _, entry := range m.Entries {
		entry = entry.Normalize()
		if err := entry.Validate(); err != nil {
			return err
		}
		if _, reserved := reservedStoragePaths[entry.StoragePath]; reserved {
			return fmt.Errorf("core: storage path %q is reserved", entry.StoragePath)
		}
		if _, reserved := reservedCanonicalPaths[entry.CanonicalPath]; reserved {
			return fmt.Errorf("core: canonical path %q is reserved", entry.CanonicalPath)
		}
		if _, dup := canonicalSeen[entry.CanonicalPath]; dup {
			return fmt.Errorf("core: duplicate canonical path %q in field mapping", entry.CanonicalPath)
		}
		if _, dup := storageSeen[entry.StoragePath]; dup {
			return fmt.Errorf("core: duplicate storage path %q in field mapping", entry.StoragePath)
		}
		canonicalSeen[entry.CanonicalPath] = struct{}{}
		storageSeen[entry.StoragePath] = struct{}{}
	}
	return nil
}

func (m FieldMapping) EntryForCanonical(canonicalPath string) (MappingEntry, bool) {
	target := strings.TrimSpace(canonicalPath)
	for _, entry := range m.Entries {
		if entry.Normalize().CanonicalPath == target {
			return entry.Normalize(), true
		}
	}
	return MappingEntry{}, false
}

func (m FieldMapping) EntryForStorage(storagePath string) (MappingEntry, bool) {
	target := strings.TrimSpace(storagePath)
	for _, entry := range m.Entries {
		if entry.Normalize().StoragePath == target {
			return entry.Normalize(), true
		}
	}
	return MappingEntry{}, false
}

// GroupMember is one entry of a group's derived member list.
type GroupMember struct {
	Value   string
	Display string
}

type MemberOperationKind string

const (
	MemberAdd    MemberOperationKind = "add"
	MemberDelete MemberOperationKind = "delete"
)

// MemberOperation is one requested member-set change of a group update.
// Value references the member by its canonical user id.
type MemberOperation struct {
	Op    MemberOperationKind
	Value string
}

func (o MemberOperation) Normalize() MemberOperation {
	kind := MemberOperationKind(strings.TrimSpace(strings.ToLower(string(o.Op))))
	switch kind {
	case "":
		kind = MemberAdd
	case "remove":
		kind = MemberDelete
	}
	o.Op = kind
	o.Value = strings.TrimSpace(o.Value)
	return o
}

func (o MemberOperation) Validate() error {
	normalized := o.Normalize()
	if normalized.Op != MemberAdd && normalized.Op != MemberDelete {
		return fmt.Errorf("core: unsupported member operation %q", o.Op)
	}
	if normalized.Value == "" {
		return fmt.Errorf("core: member operation value is required")
	}
	return nil
}

// ListResult carries the mapped resources of a listing together with the
// result count. TotalCount always equals len(Resources); the connector does
// not run a separate count query.
type ListResult struct {
	Resources  []map[string]any
	TotalCount int
}

// projectResource reduces a canonical resource to the requested attribute
// paths. The canonical id is always retained; an empty request returns the
// resource untouched.
func projectResource(resource map[string]any, attributes []string) map[string]any {
	if len(attributes) == 0 {
		return resource
	}
	out := map[string]any{}
	if id, ok := resource[AttributeID]; ok {
		out[AttributeID] = id
	}
	for _, attribute := range attributes {
		path := strings.TrimSpace(attribute)
		if path == "" || path == AttributeID {
			continue
		}
		value, present := lookupPath(resource, path)
		if !present {
			continue
		}
		if err := setPath(out, path, value); err != nil {
			continue
		}
	}
	return out
}

func recordKey(record map[string]any) string {
	if record == nil {
		return ""
	}
	if key, ok := record[recordKeyField].(string); ok {
		return strings.TrimSpace(key)
	}
	return ""
}

func recordMemberKeys(record map[string]any) []string {
	if record == nil {
		return nil
	}
	switch raw := record[recordMembersField].(type) {
	case []string:
		out := make([]string, 0, len(raw))
		for _, key := range raw {
			if trimmed := strings.TrimSpace(key); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(raw))
		for _, value := range raw {
			if key, ok := value.(string); ok {
				if trimmed := strings.TrimSpace(key); trimmed != "" {
					out = append(out, trimmed)
				}
			}
		}
		return out
	default:
		return nil
	}
}

func stringAttribute(resource map[string]any, name string) string {
	if resource == nil {
		return ""
	}
	if value, ok := resource[name].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func cloneRecord(record map[string]any) map[string]any {
	if len(record) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(record))
	for key, value := range record {
		out[key] = value
	}
	return out
}

// MergePatch merges a storage patch into a record in place. Nested objects
// merge key by key so a patch touching one dotted storage path leaves sibling
// fields alone; scalar and array values replace the previous value outright.
// Store implementations apply update patches through this to honor the
// StoreSession.Update contract.
func MergePatch(record, patch map[string]any) {
	for key, value := range patch {
		next, ok := value.(map[string]any)
		if !ok {
			record[key] = value
			continue
		}
		existing, ok := record[key].(map[string]any)
		if !ok {
			existing = make(map[string]any, len(next))
			record[key] = existing
		}
		MergePatch(existing, next)
	}
}
