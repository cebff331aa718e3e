// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package apptoto

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/UOSAN/message-automation/internal/metrics"
)

type contactsRequest struct {
	Contacts []Contact `json:"contacts"`
}

type contactsResponse struct {
	Contacts []Contact `json:"contacts"`
}

// GetContact returns the contact with the given external id, or nil when
// the provider has none.
func (c *Client) GetContact(ctx context.Context, externalID string) (*Contact, error) {
	var contact Contact
	err := c.do(ctx, request{
		op:     "get_contact",
		method: http.MethodGet,
		path:   "/contact",
		query:  url.Values{"external_id": {externalID}},
	}, &contact)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get contact %s: %w", externalID, err)
	}
	if contact.ID == 0 && contact.ExternalID == "" {
		return nil, nil
	}
	return &contact, nil
}

// PostContact creates a contact and returns it with its provider id.
func (c *Client) PostContact(ctx context.Context, contact Contact) (*Contact, error) {
	return c.writeContact(ctx, "post_contact", http.MethodPost, contact)
}

// PutContact updates an existing contact.
func (c *Client) PutContact(ctx context.Context, contact Contact) (*Contact, error) {
	return c.writeContact(ctx, "put_contact", http.MethodPut, contact)
}

func (c *Client) writeContact(ctx context.Context, op, method string, contact Contact) (*Contact, error) {
	var resp contactsResponse
	err := c.do(ctx, request{
		op:     op,
		method: method,
		path:   "/contacts",
		body:   contactsRequest{Contacts: []Contact{contact}},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, contact.ExternalID, err)
	}
	metrics.ContactWrites.WithLabelValues(op).Inc()

	if len(resp.Contacts) > 0 {
		return &resp.Contacts[0], nil
	}
	return &contact, nil
}
