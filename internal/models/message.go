package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Message kinds. Kind affects rendering only, never delivery semantics.
const (
	KindMessage = "message"
	KindJoin    = "join"
	KindSystem  = "system"
)

// Message is an immutable event in a scope's stream. IDs are UUIDv7 strings,
// so lexicographic order equals creation order within a scope.
type Message struct {
	ID        string    `db:"id" json:"id"`
	TenantID  int       `db:"tenant_id" json:"tenant_id"`
	ModuleID  *int      `db:"module_id" json:"module_id,omitempty"`
	Kind      string    `db:"kind" json:"kind"`
	Body      string    `db:"body" json:"body"`
	AuthorID  *int      `db:"author_id" json:"author_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Scope identifies an isolated message stream: either a tenant-wide channel
// or a single module's channel within that tenant.
type Scope struct {
	TenantID int
	ModuleID *int
}

// TenantScope returns the tenant-wide channel scope.
func TenantScope(tenantID int) Scope {
	return Scope{TenantID: tenantID}
}

// ModuleScope returns the channel scope of one module.
func ModuleScope(tenantID, moduleID int) Scope {
	return Scope{TenantID: tenantID, ModuleID: &moduleID}
}

// Key yields the stable query key used for routes, hub rooms and cursor keys.
// One scope's backlog must never bleed into another's cursor, so the key is
// the unit of isolation everywhere.
func (s Scope) Key() string {
	if s.ModuleID != nil {
		return fmt.Sprintf("module-%d", *s.ModuleID)
	}
	return "school"
}

// StorageKey includes the tenant, for cursor stores shared across tenants.
func (s Scope) StorageKey() string {
	return fmt.Sprintf("t%d/%s", s.TenantID, s.Key())
}

// ParseScopeKey resolves a route key ("school" or "module-<id>") for a tenant.
func ParseScopeKey(tenantID int, key string) (Scope, error) {
	if key == "school" {
		return TenantScope(tenantID), nil
	}
	if rest, ok := strings.CutPrefix(key, "module-"); ok {
		id, err := strconv.Atoi(rest)
		if err != nil || id <= 0 {
			return Scope{}, fmt.Errorf("invalid module id in scope %q", key)
		}
		return ModuleScope(tenantID, id), nil
	}
	return Scope{}, fmt.Errorf("unknown scope %q", key)
}

// Stream event types carried over the push channel.
const (
	EventBatch     = "batch"
	EventReconnect = "reconnect"
)

// StreamEvent is the frame broadcast over push connections. A "batch" carries
// new messages; a "reconnect" asks the client to re-establish its connection
// (a rebalance hint, which the client must not count as a push failure).
type StreamEvent struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages,omitempty"`
}

// FetchPage is the incremental fetch response body. Messages are ordered
// oldest-first; the last element's id is always a safe new cursor.
type FetchPage struct {
	Messages []Message `json:"messages"`
	Topic    *string   `json:"topic"`
	Mentors  []string  `json:"mentors"`
}
