// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/localbasket/marketsync/internal/model"
)

// NotificationPage is one page of the notifications collection, delivered by
// the server in descending timestamp order.
type NotificationPage struct {
	Items      []model.Notification
	Page       int
	Size       int
	TotalItems int
	TotalPages int
}

// notificationWire is the collection item shape on the wire.
type notificationWire struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// notificationsResponse matches the paginated collection envelope.
type notificationsResponse struct {
	Content       []notificationWire `json:"content"`
	Number        int                `json:"number"`
	Size          int                `json:"size"`
	TotalElements int                `json:"totalElements"`
	TotalPages    int                `json:"totalPages"`
}

// Notifications fetches one historical page, newest first.
func (c *Client) Notifications(ctx context.Context, page, size int) (*NotificationPage, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("size", fmt.Sprint(size))
	q.Set("sort", "timestamp,desc")

	var resp notificationsResponse
	if err := c.do(ctx, http.MethodGet, "/notifications?"+q.Encode(), nil, &resp, false); err != nil {
		return nil, err
	}

	items := make([]model.Notification, 0, len(resp.Content))
	for _, w := range resp.Content {
		items = append(items, model.Notification{
			ID:        w.ID,
			Type:      model.NormalizeNotificationType(w.Type),
			Message:   w.Message,
			Timestamp: w.Timestamp,
			Read:      w.Read,
		})
	}

	return &NotificationPage{
		Items:      items,
		Page:       resp.Number,
		Size:       resp.Size,
		TotalItems: resp.TotalElements,
		TotalPages: resp.TotalPages,
	}, nil
}

// MarkRead marks a single notification as read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/notifications/"+url.PathEscape(id)+"/mark-read", nil, nil, false)
}

// MarkAllRead marks every notification as read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/notifications/mark-read", nil, nil, false)
}

// UnreadCount fetches the authoritative unread counter.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/notifications/unread-count", nil, &resp, false); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Categories fetches the marketplace category list.
func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	var resp []model.Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &resp, false); err != nil {
		return nil, err
	}
	return resp, nil
}

// DeliveryZones fetches the producer delivery zones.
func (c *Client) DeliveryZones(ctx context.Context) ([]model.DeliveryZone, error) {
	var resp []model.DeliveryZone
	if err := c.do(ctx, http.MethodGet, "/delivery-zones", nil, &resp, false); err != nil {
		return nil, err
	}
	return resp, nil
}

// ApplicationStatus fetches the current user's seller application status.
func (c *Client) ApplicationStatus(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/account/application-status", nil, &resp, false); err != nil {
		return "", err
	}
	return resp.Status, nil
}
