package sqlstore

import (
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-provisioning/core"
)

// userRecord persists one provisioned user. The mapped storage document is
// kept whole in the jsonb column; user_name and external_id are promoted to
// real columns so equality filters and the uniqueness constraint run in SQL.
type userRecord struct {
	bun.BaseModel `bun:"table:directory_users,alias:du"`

	ID         string         `bun:"id,pk"`
	UserName   string         `bun:"user_name,notnull,unique"`
	ExternalID string         `bun:"external_id"`
	Document   map[string]any `bun:"document,type:jsonb,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// groupRecord persists one provisioned group. Members holds the storage keys
// of the group's users and is the source of truth for membership.
type groupRecord struct {
	bun.BaseModel `bun:"table:directory_groups,alias:dg"`

	ID          string         `bun:"id,pk"`
	DisplayName string         `bun:"display_name,notnull,unique"`
	ExternalID  string         `bun:"external_id"`
	Members     []string       `bun:"members,type:jsonb,notnull"`
	Document    map[string]any `bun:"document,type:jsonb,notnull"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

const (
	columnID          = "id"
	columnUserName    = "user_name"
	columnDisplayName = "display_name"
	columnExternalID  = "external_id"
	fieldMembers      = "members"
)

func newUserRecord(doc map[string]any, now time.Time) *userRecord {
	record := &userRecord{
		Document:  cloneDocument(doc),
		CreatedAt: now,
		UpdatedAt: now,
	}
	record.promote()
	return record
}

func (r *userRecord) promote() {
	r.UserName = documentString(r.Document, columnUserName)
	r.ExternalID = documentString(r.Document, columnExternalID)
	delete(r.Document, columnID)
}

func (r *userRecord) applyPatch(patch map[string]any, now time.Time) {
	if r.Document == nil {
		r.Document = map[string]any{}
	}
	core.MergePatch(r.Document, patch)
	r.promote()
	r.UpdatedAt = now
}

func (r *userRecord) toStorageMap() map[string]any {
	out := cloneDocument(r.Document)
	out[columnID] = r.ID
	out[columnUserName] = r.UserName
	if r.ExternalID != "" {
		out[columnExternalID] = r.ExternalID
	}
	return out
}

func newGroupRecord(doc map[string]any, now time.Time) *groupRecord {
	record := &groupRecord{
		Document:  cloneDocument(doc),
		Members:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	record.promote()
	return record
}

func (r *groupRecord) promote() {
	r.DisplayName = documentString(r.Document, columnDisplayName)
	r.ExternalID = documentString(r.Document, columnExternalID)
	if members, ok := memberSlice(r.Document[fieldMembers]); ok {
		r.Members = members
	}
	delete(r.Document, columnID)
	delete(r.Document, fieldMembers)
	if r.Members == nil {
		r.Members = []string{}
	}
}

func (r *groupRecord) applyPatch(patch map[string]any, now time.Time) {
	if r.Document == nil {
		r.Document = map[string]any{}
	}
	core.MergePatch(r.Document, patch)
	r.promote()
	r.UpdatedAt = now
}

func (r *groupRecord) toStorageMap() map[string]any {
	out := cloneDocument(r.Document)
	out[columnID] = r.ID
	out[columnDisplayName] = r.DisplayName
	if r.ExternalID != "" {
		out[columnExternalID] = r.ExternalID
	}
	members := make([]string, len(r.Members))
	copy(members, r.Members)
	out[fieldMembers] = members
	return out
}

func (r *groupRecord) hasMember(key string) bool {
	for _, member := range r.Members {
		if member == key {
			return true
		}
	}
	return false
}

func cloneDocument(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for key, value := range doc {
		out[key] = value
	}
	return out
}

func documentString(doc map[string]any, key string) string {
	if value, ok := doc[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func memberSlice(raw any) ([]string, bool) {
	switch typed := raw.(type) {
	case []string:
		out := make([]string, len(typed))
		copy(out, typed)
		return out, true
	case []any:
		out := make([]string, 0, len(typed))
		for _, value := range typed {
			if key, ok := value.(string); ok {
				out = append(out, key)
			}
		}
		return out, true
	default:
		return nil, false
	}
}
