// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// NotificationType is the display category of a notification. It drives
// iconography only; dispatch never branches on it.
type NotificationType string

// Known notification types. Unknown inbound types map to NotificationOther.
const (
	NotificationNewOrder           NotificationType = "new-order"
	NotificationStockAlert         NotificationType = "stock-alert"
	NotificationProductApproved    NotificationType = "product-approved"
	NotificationOrderStatusUpdate  NotificationType = "order-status-update"
	NotificationDeliveryUpdate     NotificationType = "delivery-update"
	NotificationReviewStatusUpdate NotificationType = "review-status-update"
	NotificationOther              NotificationType = "other"
)

// NormalizeNotificationType maps a wire type string onto a known type.
func NormalizeNotificationType(s string) NotificationType {
	switch t := NotificationType(s); t {
	case NotificationNewOrder, NotificationStockAlert, NotificationProductApproved,
		NotificationOrderStatusUpdate, NotificationDeliveryUpdate, NotificationReviewStatusUpdate:
		return t
	}
	return NotificationOther
}

// Notification is a single push or historical notification entry.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
}

// Category is a marketplace product category, cached client-side per session.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// DeliveryZone is a producer delivery area, cached client-side per session.
type DeliveryZone struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
