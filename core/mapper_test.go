package core

import (
	"reflect"
	"testing"
)

func testUserMapping(t *testing.T) FieldMapping {
	t.Helper()
	mapping, err := DefaultConfig().UserFieldMapping()
	if err != nil {
		t.Fatalf("default user mapping: %v", err)
	}
	return mapping
}

func TestAttributeMapperRoundTrip(t *testing.T) {
	mapper := NewAttributeMapper()
	mapping := testUserMapping(t)

	canonical := map[string]any{
		"userName": "  alice  ",
		"name": map[string]any{
			"givenName":  "Alice",
			"familyName": "Smith",
		},
		"active": "true",
	}

	record, err := mapper.MapOutbound(canonical, mapping)
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if record["user_name"] != "alice" {
		t.Fatalf("user_name = %v, want alice", record["user_name"])
	}
	if record["given_name"] != "Alice" || record["family_name"] != "Smith" {
		t.Fatalf("name fields = %v / %v", record["given_name"], record["family_name"])
	}
	if record["active"] != true {
		t.Fatalf("active = %v (%T), want true", record["active"], record["active"])
	}

	back, err := mapper.MapInbound(record, mapping)
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	if back["userName"] != "alice" {
		t.Fatalf("userName = %v, want alice", back["userName"])
	}
	name, ok := back["name"].(map[string]any)
	if !ok || name["givenName"] != "Alice" {
		t.Fatalf("nested name not rebuilt: %v", back["name"])
	}
}

func TestAttributeMapperInvertsTimeTransformOnRead(t *testing.T) {
	mapper := NewAttributeMapper()
	mapping, err := NewFieldMapping(
		MappingEntry{CanonicalPath: "userName", StoragePath: "user_name"},
		MappingEntry{CanonicalPath: "hiredAt", StoragePath: "hired_at", Transform: "unix_time_to_rfc3339"},
	)
	if err != nil {
		t.Fatalf("mapping: %v", err)
	}

	record, err := mapper.MapOutbound(map[string]any{"hiredAt": 1700000000}, mapping)
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if record["hired_at"] != "2023-11-14T22:13:20Z" {
		t.Fatalf("hired_at = %v", record["hired_at"])
	}

	back, err := mapper.MapInbound(record, mapping)
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	if back["hiredAt"] != int64(1700000000) {
		t.Fatalf("hiredAt = %v (%T), want unix seconds back", back["hiredAt"], back["hiredAt"])
	}
}

func TestAttributeMapperPartialInputOmitsAbsentEntries(t *testing.T) {
	mapper := NewAttributeMapper()
	mapping := testUserMapping(t)

	record, err := mapper.MapOutbound(map[string]any{"title": "Engineer"}, mapping)
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	want := map[string]any{"title": "Engineer"}
	if !reflect.DeepEqual(record, want) {
		t.Fatalf("record = %v, want only title", record)
	}
}

func TestAttributeMapperDropsUnmappedFields(t *testing.T) {
	mapper := NewAttributeMapper()
	mapping := testUserMapping(t)

	record, err := mapper.MapOutbound(map[string]any{
		"userName":       "bob",
		"favoriteColour": "green",
	}, mapping)
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if _, present := record["favoriteColour"]; present {
		t.Fatalf("unmapped field leaked into storage record: %v", record)
	}
	if record["user_name"] != "bob" {
		t.Fatalf("user_name = %v", record["user_name"])
	}
}

func TestAttributeMapperTransformFailureIsMappingError(t *testing.T) {
	mapper := NewAttributeMapper()
	mapping, err := NewFieldMapping(MappingEntry{
		CanonicalPath: "active",
		StoragePath:   "active",
		Transform:     "to_bool",
	})
	if err != nil {
		t.Fatalf("mapping: %v", err)
	}

	_, err = mapper.MapOutbound(map[string]any{"active": "maybe"}, mapping)
	if err == nil {
		t.Fatal("expected transform failure")
	}
	if !IsMappingError(err) {
		t.Fatalf("error = %v, want mapping error", err)
	}
}

func TestFieldMappingRejectsReservedAndDuplicatePaths(t *testing.T) {
	cases := []struct {
		name    string
		entries []MappingEntry
	}{
		{
			name: "reserved storage path",
			entries: []MappingEntry{
				{CanonicalPath: "userName", StoragePath: "id"},
			},
		},
		{
			name: "reserved members target",
			entries: []MappingEntry{
				{CanonicalPath: "memberList", StoragePath: "members"},
			},
		},
		{
			name: "reserved canonical path",
			entries: []MappingEntry{
				{CanonicalPath: "id", StoragePath: "external_id"},
			},
		},
		{
			name: "duplicate canonical path",
			entries: []MappingEntry{
				{CanonicalPath: "userName", StoragePath: "user_name"},
				{CanonicalPath: "userName", StoragePath: "login"},
			},
		},
		{
			name: "duplicate storage path",
			entries: []MappingEntry{
				{CanonicalPath: "userName", StoragePath: "user_name"},
				{CanonicalPath: "displayName", StoragePath: "user_name"},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewFieldMapping(tc.entries...); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSetPathCollisionIsRejected(t *testing.T) {
	mapper := NewAttributeMapper()
	mapping, err := NewFieldMapping(
		MappingEntry{CanonicalPath: "profile", StoragePath: "profile"},
		MappingEntry{CanonicalPath: "profileTitle", StoragePath: "profile.title"},
	)
	if err != nil {
		t.Fatalf("mapping: %v", err)
	}

	_, err = mapper.MapOutbound(map[string]any{
		"profile":      "plain-string",
		"profileTitle": "Engineer",
	}, mapping)
	if err == nil {
		t.Fatal("expected collision error")
	}
	if !IsMappingError(err) {
		t.Fatalf("error = %v, want mapping error", err)
	}
}
