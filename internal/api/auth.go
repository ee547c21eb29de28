// Package api implements HTTP handlers and helpers for the dispatch service.
package api

import (
    "net/http"
    "strings"

    "techdispatch/internal/auth"
)

// getPrincipal extracts tenant, role and technician id from JWT or headers.
// - If Authorization: Bearer is present, uses configured verifier (dev/hmac/jwks).
// - Else falls back to X-Tenant-Id, X-Role and X-Technician-Id for dev.
func (s *Server) getPrincipal(r *http.Request) auth.Principal {
    authz := r.Header.Get("Authorization")
    if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
        tok := strings.TrimSpace(authz[len("Bearer "):])
        if pr, err := s.Auth.Verify(tok); err == nil {
            pr.Tenant = s.normalizeTenantID(pr.Tenant)
            return pr
        }
    }
    role := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Role")))
    if role == "" {
        role = auth.RoleAdmin
    }
    return auth.Principal{
        Tenant:       s.normalizeTenantID(r.Header.Get("X-Tenant-Id")),
        Role:         role,
        TechnicianID: strings.TrimSpace(r.Header.Get("X-Technician-Id")),
    }
}

func isAdmin(p auth.Principal) bool { return p.Role == auth.RoleAdmin }

// canViewTechnician reports whether p may read the evaluation narrowed to techID.
func canViewTechnician(p auth.Principal, techID string) bool {
    if p.CanDispatch() {
        return true
    }
    return p.Role == auth.RoleTechnician && techID != "" && strings.EqualFold(p.TechnicianID, techID)
}
