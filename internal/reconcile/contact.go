// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package reconcile

import (
	"context"
	"fmt"
	"slices"

	"github.com/UOSAN/message-automation/internal/apptoto"
	"github.com/UOSAN/message-automation/internal/logging"
	"github.com/UOSAN/message-automation/internal/models"
)

// UpdateContact creates the participant's provider contact or adds their
// current phone and email to it. The provider is written only when something
// changed; changed reports whether it was.
func (e *Engine) UpdateContact(ctx context.Context, rec *models.ParticipantRecord) (bool, error) {
	if err := rec.Require(models.PhaseContact); err != nil {
		return false, err
	}

	log := logging.Ctx(ctx).With().Str("participant", rec.ID).Logger()

	existing, err := e.provider.GetContact(ctx, rec.ID)
	if err != nil {
		return false, fmt.Errorf("update contact: %w", err)
	}

	if existing == nil {
		contact := apptoto.Contact{
			ExternalID:     rec.ID,
			Name:           rec.ContactName(),
			PhoneNumbers:   []apptoto.PhoneNumber{{Number: rec.Phone, IsPrimary: true}},
			EmailAddresses: []apptoto.EmailAddress{{Address: rec.Email, IsPrimary: true}},
		}
		if _, err := e.provider.PostContact(ctx, contact); err != nil {
			return false, fmt.Errorf("update contact: %w", err)
		}
		log.Info().
			Str("phone", logging.MaskPhone(rec.Phone)).
			Str("email", logging.MaskEmail(rec.Email)).
			Msg("Created Apptoto contact")
		return true, nil
	}

	contact := *existing
	contact.PhoneNumbers = slices.Clone(existing.PhoneNumbers)
	contact.EmailAddresses = slices.Clone(existing.EmailAddresses)
	phoneAdded := addPhone(&contact, rec.Phone)
	emailAdded := addEmail(&contact, rec.Email)
	if !phoneAdded && !emailAdded {
		log.Debug().Msg("Apptoto contact already current")
		return false, nil
	}

	if _, err := e.provider.PutContact(ctx, contact); err != nil {
		return false, fmt.Errorf("update contact: %w", err)
	}
	log.Info().
		Bool("phone_added", phoneAdded).
		Bool("email_added", emailAdded).
		Str("phone", logging.MaskPhone(rec.Phone)).
		Str("email", logging.MaskEmail(rec.Email)).
		Msg("Updated Apptoto contact")
	return true, nil
}

// addPhone appends number as the new primary when the contact lacks it.
func addPhone(c *apptoto.Contact, number string) bool {
	for _, p := range c.PhoneNumbers {
		if p.Number == number {
			return false
		}
	}
	for i := range c.PhoneNumbers {
		c.PhoneNumbers[i].IsPrimary = false
	}
	c.PhoneNumbers = append(c.PhoneNumbers, apptoto.PhoneNumber{Number: number, IsPrimary: true})
	return true
}

// addEmail appends address as the new primary when the contact lacks it.
func addEmail(c *apptoto.Contact, address string) bool {
	for _, a := range c.EmailAddresses {
		if a.Address == address {
			return false
		}
	}
	for i := range c.EmailAddresses {
		c.EmailAddresses[i].IsPrimary = false
	}
	c.EmailAddresses = append(c.EmailAddresses, apptoto.EmailAddress{Address: address, IsPrimary: true})
	return true
}
