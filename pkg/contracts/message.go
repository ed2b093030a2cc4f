// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package contracts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// EventType discriminates scraper messages on the wire.
type EventType string

const (
	// ApartmentAddedType marks a listing seen for the first time.
	ApartmentAddedType EventType = "apartment_added"
	// PriceChangedType marks a listing whose rent price changed.
	PriceChangedType EventType = "price_changed"
	// ApartmentBumpedType marks a listing updated again after a while.
	ApartmentBumpedType EventType = "apartment_bumped"
)

var eventTypes = []EventType{ApartmentAddedType, PriceChangedType, ApartmentBumpedType}

// EventTypes returns every known discriminator value.
func EventTypes() []EventType {
	return append([]EventType(nil), eventTypes...)
}

// ParseEventType validates a raw discriminator value.
func ParseEventType(raw string) (EventType, error) {
	t := EventType(raw)
	if !lo.Contains(eventTypes, t) {
		return "", UnknownEventTypeError{Type: raw}
	}

	return t, nil
}

// Message is one variant of the scraper message union.
type Message interface {
	EventType() EventType
	Listing() Apartment
}

// ApartmentAdded is published when a new listing appears.
type ApartmentAdded struct {
	Apartment
}

// PriceChanged is published when the rent price of a listing changes.
type PriceChanged struct {
	Apartment
	// OldPrice is the previous rent price.
	OldPrice float64 `json:"oldPrice"`
}

// ApartmentBumped is published when a listing is refreshed after a while.
type ApartmentBumped struct {
	Apartment
	// LastBumpDate is the previous update date of the listing.
	LastBumpDate time.Time `json:"lastBumpDate"`
}

func (ApartmentAdded) EventType() EventType  { return ApartmentAddedType }
func (PriceChanged) EventType() EventType    { return PriceChangedType }
func (ApartmentBumped) EventType() EventType { return ApartmentBumpedType }

func (m ApartmentAdded) Listing() Apartment  { return m.Apartment }
func (m PriceChanged) Listing() Apartment    { return m.Apartment }
func (m ApartmentBumped) Listing() Apartment { return m.Apartment }

// The wire format is a flat object: the discriminator next to the listing fields.
// Each alias drops the methods so the embedded struct is encoded without recursion.

func (m ApartmentAdded) MarshalJSON() ([]byte, error) {
	type plain ApartmentAdded

	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{ApartmentAddedType, plain(m)})
}

func (m PriceChanged) MarshalJSON() ([]byte, error) {
	type plain PriceChanged

	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{PriceChangedType, plain(m)})
}

func (m ApartmentBumped) MarshalJSON() ([]byte, error) {
	type plain ApartmentBumped

	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{ApartmentBumpedType, plain(m)})
}

// Decode parses a wire payload into the variant named by its "type" field.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode message type: %w", err)
	}

	t, err := ParseEventType(head.Type)
	if err != nil {
		return nil, err
	}

	var msg Message

	switch t {
	case ApartmentAddedType:
		var m ApartmentAdded
		err = json.Unmarshal(data, &m)
		msg = m
	case PriceChangedType:
		var m PriceChanged
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		var m ApartmentBumped
		err = json.Unmarshal(data, &m)
		msg = m
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s message: %w", t, err)
	}

	return msg, nil
}
