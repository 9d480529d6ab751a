package core

import (
	"fmt"
	"strings"
)

type CollectionsConfig struct {
	Users  string `koanf:"users" mapstructure:"users"`
	Groups string `koanf:"groups" mapstructure:"groups"`
}

type Config struct {
	ServiceName  string            `koanf:"service_name" mapstructure:"service_name"`
	Collections  CollectionsConfig `koanf:"collections" mapstructure:"collections"`
	UserMapping  []MappingEntry    `koanf:"user_mapping" mapstructure:"user_mapping"`
	GroupMapping []MappingEntry    `koanf:"group_mapping" mapstructure:"group_mapping"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "provisioning",
		Collections: CollectionsConfig{
			Users:  "directory_users",
			Groups: "directory_groups",
		},
		UserMapping: []MappingEntry{
			{CanonicalPath: "userName", StoragePath: "user_name", Transform: "trim"},
			{CanonicalPath: "externalId", StoragePath: "external_id"},
			{CanonicalPath: "displayName", StoragePath: "display_name"},
			{CanonicalPath: "name.givenName", StoragePath: "given_name"},
			{CanonicalPath: "name.familyName", StoragePath: "family_name"},
			{CanonicalPath: "active", StoragePath: "active", Transform: "to_bool"},
			{CanonicalPath: "title", StoragePath: "title"},
		},
		GroupMapping: []MappingEntry{
			{CanonicalPath: "displayName", StoragePath: "display_name", Transform: "trim"},
			{CanonicalPath: "externalId", StoragePath: "external_id"},
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Collections.Users) == "" {
		return fmt.Errorf("core: collections.users is required")
	}
	if strings.TrimSpace(c.Collections.Groups) == "" {
		return fmt.Errorf("core: collections.groups is required")
	}
	if c.Collections.Users == c.Collections.Groups {
		return fmt.Errorf("core: users and groups collections must differ")
	}
	if _, err := c.UserFieldMapping(); err != nil {
		return fmt.Errorf("core: user mapping: %w", err)
	}
	if _, err := c.GroupFieldMapping(); err != nil {
		return fmt.Errorf("core: group mapping: %w", err)
	}
	return nil
}

// UserFieldMapping materializes the configured user attribute table. The
// mapping must cover userName since it doubles as the canonical user id.
func (c Config) UserFieldMapping() (FieldMapping, error) {
	mapping, err := NewFieldMapping(c.UserMapping...)
	if err != nil {
		return FieldMapping{}, err
	}
	if _, found := mapping.EntryForCanonical(AttributeUserName); !found {
		return FieldMapping{}, fmt.Errorf("core: user mapping must include userName")
	}
	return mapping, nil
}

// GroupFieldMapping materializes the configured group attribute table. The
// mapping must cover displayName since it doubles as the canonical group id.
func (c Config) GroupFieldMapping() (FieldMapping, error) {
	mapping, err := NewFieldMapping(c.GroupMapping...)
	if err != nil {
		return FieldMapping{}, err
	}
	if _, found := mapping.EntryForCanonical(AttributeDisplayName); !found {
		return FieldMapping{}, fmt.Errorf("core: group mapping must include displayName")
	}
	return mapping, nil
}
