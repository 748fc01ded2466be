// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"admin", RoleAdmin, false},
		{"ADMIN", RoleAdmin, false},
		{"Producer", RoleProducer, false},
		{"CUSTOMER", RoleCustomer, false},
		{" customer ", RoleCustomer, false},
		{"", "", true},
		{"superuser", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleProducer, RoleCustomer} {
		if !r.Valid() {
			t.Errorf("Role(%q).Valid() = false, want true", r)
		}
	}
	if Role("guest").Valid() {
		t.Error(`Role("guest").Valid() = true, want false`)
	}
}

func TestNormalizeNotificationType(t *testing.T) {
	tests := []struct {
		in   string
		want NotificationType
	}{
		{"new-order", NotificationNewOrder},
		{"stock-alert", NotificationStockAlert},
		{"product-approved", NotificationProductApproved},
		{"order-status-update", NotificationOrderStatusUpdate},
		{"delivery-update", NotificationDeliveryUpdate},
		{"review-status-update", NotificationReviewStatusUpdate},
		{"other", NotificationOther},
		{"", NotificationOther},
		{"promo-blast", NotificationOther},
	}

	for _, tt := range tests {
		if got := NormalizeNotificationType(tt.in); got != tt.want {
			t.Errorf("NormalizeNotificationType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewSession(t *testing.T) {
	s := NewSession()
	if s.IsAuthenticated {
		t.Error("new session must not be authenticated")
	}
	if s.User != nil {
		t.Error("new session must have nil user")
	}
	if s.Lifecycle != StatusIdle {
		t.Errorf("Lifecycle = %q, want %q", s.Lifecycle, StatusIdle)
	}
	if !s.Settled() {
		t.Error("idle session must be settled")
	}
	s.Lifecycle = StatusChecking
	if s.Settled() {
		t.Error("checking session must not be settled")
	}
}
