// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the core domain types shared across marketsync:
// users, sessions, notifications and lifecycle events.
package model

import (
	"fmt"
	"strings"
)

// Role is the platform role carried by an authenticated user.
type Role string

// Platform roles. The server reports roles in upper case; ParseRole
// normalizes them.
const (
	RoleAdmin    Role = "admin"
	RoleProducer Role = "producer"
	RoleCustomer Role = "customer"
)

// ParseRole normalizes a server-reported role string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleProducer:
		return RoleProducer, nil
	case RoleCustomer:
		return RoleCustomer, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Valid reports whether r is one of the known platform roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProducer, RoleCustomer:
		return true
	}
	return false
}

// ApplicationStatus values for a customer's seller application.
const (
	ApplicationNone     = ""
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// User is the identity record the server reports for the current session.
type User struct {
	ID                int64  `json:"id"`
	Email             string `json:"email"`
	Role              Role   `json:"role"`
	DisplayName       string `json:"displayName"`
	ApplicationStatus string `json:"applicationStatus,omitempty"`
}
