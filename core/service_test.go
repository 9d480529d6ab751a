package core

import (
	"context"
	"testing"
)

func TestNewRequiresSessionFactory(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("expected build failure without a store")
	}
	if !IsValidationError(err) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestNewAppliesDefaultsAndRuntimeOverrides(t *testing.T) {
	store := newFakeStore()
	store.uniqueFields["people"] = []string{"user_name"}
	store.uniqueFields["teams"] = []string{"display_name"}

	connector, err := New(Config{
		Collections: CollectionsConfig{Users: "people", Groups: "teams"},
	}, WithSessionFactory(store))
	if err != nil {
		t.Fatalf("build connector: %v", err)
	}

	cfg := connector.Config()
	if cfg.ServiceName != "provisioning" {
		t.Fatalf("service name = %q, want default", cfg.ServiceName)
	}
	if cfg.Collections.Users != "people" || cfg.Collections.Groups != "teams" {
		t.Fatalf("collections = %+v, runtime override lost", cfg.Collections)
	}
	if len(cfg.UserMapping) == 0 || len(cfg.GroupMapping) == 0 {
		t.Fatal("default mappings not applied")
	}

	// the override collections actually carry the data
	if _, err := connector.Users().Create(context.Background(), map[string]any{
		AttributeUserName: "alice",
	}); err != nil {
		t.Fatalf("create against override collection: %v", err)
	}
	if got := len(store.records("people")); got != 1 {
		t.Fatalf("people records = %d, want 1", got)
	}
}

func TestNewLoadsConfigFromRawLoader(t *testing.T) {
	store := newFakeStore()
	store.uniqueFields["ldap_users"] = []string{"user_name"}
	store.uniqueFields["ldap_groups"] = []string{"display_name"}

	loader := staticRawConfigLoader{Values: map[string]any{
		"service_name": "provisioning-ldap",
		"collections": map[string]any{
			"users":  "ldap_users",
			"groups": "ldap_groups",
		},
	}}
	connector, err := New(Config{},
		WithSessionFactory(store),
		WithConfigProvider(NewCfgxConfigProvider(loader)),
	)
	if err != nil {
		t.Fatalf("build connector: %v", err)
	}
	cfg := connector.Config()
	if cfg.ServiceName != "provisioning-ldap" {
		t.Fatalf("service name = %q", cfg.ServiceName)
	}
	if cfg.Collections.Users != "ldap_users" {
		t.Fatalf("users collection = %q", cfg.Collections.Users)
	}
}

func TestConfigValidateRejectsBrokenShapes(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"same collection twice", func(c *Config) { c.Collections.Groups = c.Collections.Users }},
		{"empty users collection", func(c *Config) { c.Collections.Users = "" }},
		{"user mapping missing userName", func(c *Config) {
			c.UserMapping = []MappingEntry{{CanonicalPath: "title", StoragePath: "title"}}
		}},
		{"group mapping missing displayName", func(c *Config) {
			c.GroupMapping = []MappingEntry{{CanonicalPath: "externalId", StoragePath: "external_id"}}
		}},
		{"unsupported transform", func(c *Config) {
			c.UserMapping = append(c.UserMapping, MappingEntry{
				CanonicalPath: "custom", StoragePath: "custom", Transform: "rot13",
			})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation failure")
			}
		})
	}
}

func TestConnectorMapErrorNormalizesSentinels(t *testing.T) {
	store := newFakeStore()
	connector := newTestConnector(t, store)

	if err := connector.MapError(ErrStoreDuplicate); !IsDuplicateKeyError(err) {
		t.Fatalf("duplicate sentinel mapped to %v", err)
	}
	if err := connector.MapError(ErrStoreNotFound); !IsNotFoundError(err) {
		t.Fatalf("not-found sentinel mapped to %v", err)
	}
	if err := connector.MapError(nil); err != nil {
		t.Fatalf("nil mapped to %v", err)
	}
}
