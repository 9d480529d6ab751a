package core

import "fmt"

const operatorEqual = "eq"

// FilterTranslator converts the restricted inbound query grammar into storage
// predicates. Only the mandatory subset is supported: unconditional listing,
// equality lookup on a small set of identity attributes, and the group-side
// member containment lookup. Everything else is rejected explicitly rather
// than silently mis-filtered.
type FilterTranslator struct {
	mapper *AttributeMapper
}

func NewFilterTranslator(mapper *AttributeMapper) *FilterTranslator {
	if mapper == nil {
		mapper = NewAttributeMapper()
	}
	return &FilterTranslator{mapper: mapper}
}

func (t *FilterTranslator) Translate(entity EntityType, predicate QueryPredicate, mapping FieldMapping) (StorageFilter, error) {
	if t == nil || t.mapper == nil {
		return StorageFilter{}, fmt.Errorf("core: filter translator is required")
	}

	predicate = predicate.Normalize()
	if err := predicate.Validate(); err != nil {
		return StorageFilter{}, NewUnsupportedFilterError(err.Error())
	}

	switch predicate.Kind {
	case PredicateAll:
		return MatchAllFilter(), nil
	case PredicateRaw:
		return StorageFilter{}, NewUnsupportedFilterError("core: raw filter expressions are not supported")
	case PredicateEquality:
		return t.translateEquality(entity, predicate, mapping)
	default:
		return StorageFilter{}, NewUnsupportedFilterError(
			fmt.Sprintf("core: unsupported predicate kind %q", predicate.Kind),
		)
	}
}

func (t *FilterTranslator) translateEquality(entity EntityType, predicate QueryPredicate, mapping FieldMapping) (StorageFilter, error) {
	if predicate.Operator != operatorEqual {
		return StorageFilter{}, NewUnsupportedFilterError(
			fmt.Sprintf("core: operator %q is not supported, only %q", predicate.Operator, operatorEqual),
		)
	}

	attribute := predicate.Attribute
	switch {
	case entity == EntityGroup && attribute == AttributeMembers+".value":
		// Group-side "which groups contain this user" lookup. The member id
		// still has to be resolved to a storage key by the caller.
		return MemberContainsFilter(predicate.Value), nil
	case entity == EntityUser && attribute == AttributeGroups+".value":
		return StorageFilter{}, NewUnsupportedFilterError(
			"core: filtering users by group membership is not supported",
		)
	}

	canonical, ok := identityAttribute(entity, attribute)
	if !ok {
		return StorageFilter{}, NewUnsupportedFilterError(
			fmt.Sprintf("core: equality filter on %q is not supported", attribute),
		)
	}

	field, value, mapped, err := t.mapper.OutboundFilterValue(mapping, canonical, predicate.Value)
	if err != nil {
		return StorageFilter{}, err
	}
	if !mapped {
		return StorageFilter{}, NewUnsupportedFilterError(
			fmt.Sprintf("core: attribute %q has no storage mapping", canonical),
		)
	}
	return EqualityFilter(field, value), nil
}

// identityAttribute resolves the filterable attribute set per entity type.
// The canonical id mirrors the entity's naming attribute, so id lookups
// translate to the same storage field.
func identityAttribute(entity EntityType, attribute string) (string, bool) {
	switch entity {
	case EntityUser:
		switch attribute {
		case AttributeID, AttributeUserName:
			return AttributeUserName, true
		case AttributeExternalID:
			return AttributeExternalID, true
		}
	case EntityGroup:
		switch attribute {
		case AttributeID, AttributeDisplayName:
			return AttributeDisplayName, true
		case AttributeExternalID:
			return AttributeExternalID, true
		}
	}
	return "", false
}
