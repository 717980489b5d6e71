// Package model defines domain entities for the application.
package model

import (
	"slices"
	"time"
)

// Scope constants for advertiser key authorization.
const (
	// ScopeStats grants read access to reporting endpoints.
	ScopeStats = "stats"
	// ScopeAdmin implies all other scopes.
	ScopeAdmin = "admin"
)

// ValidScopes contains all valid scope values.
var ValidScopes = []string{ScopeStats, ScopeAdmin}

// AdvertiserKey is an API key granting an advertiser access to the
// reporting surface backing their dashboard.
type AdvertiserKey struct {
	ID         string     `json:"id"`
	Advertiser string     `json:"advertiser"`
	KeyHash    string     `json:"-"` // Never serialize
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	Name       string     `json:"name,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsRevoked returns true if the key has been revoked.
func (k *AdvertiserKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// HasScope checks if the key has a specific scope.
// Admin scope implies all other scopes.
func (k *AdvertiserKey) HasScope(scope string) bool {
	if slices.Contains(k.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(k.Scopes, scope)
}

// AuthContext holds authenticated request context.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	KeyID      string
	KeyPrefix  string
	Advertiser string
	Scopes     []string
}

// HasScope checks if the auth context has a specific scope.
func (a *AuthContext) HasScope(scope string) bool {
	if slices.Contains(a.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(a.Scopes, scope)
}
