// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package contracts holds the rental-listing events exchanged through the queue.
package contracts

import "time"

// Apartment is a snapshot of a listing as seen by the scraper.
type Apartment struct {
	// ID is the internal identification number.
	ID int64 `json:"id"`
	// ExternalID is the identification number on the source site.
	ExternalID int64 `json:"apartmentExternalId"`
	// URL points to the listing on the source site.
	URL string `json:"url"`
	// Name is the listing title.
	Name string `json:"name"`
	// LastUpdateDate is the last time the listing was updated on the source site.
	LastUpdateDate time.Time `json:"lastUpdateDate"`
	// Location is the free-form address of the apartment.
	Location string `json:"location"`
	// Size is the living size as published by the source site.
	Size string `json:"size"`
	// Price is the rent price.
	Price float64 `json:"price"`
}
