// ABOUTME: This file defines course-platform domain records for the Use stage
// ABOUTME: Timestamps stay in vendor string form until parsed per record

package models

// Customer is a course-platform customer account.
type Customer struct {
	ID            string
	CreatedAt     string
	UpdatedAt     string
	LastRequestAt string
	OfferIDs      []string
}

// Purchase is a single course-platform purchase.
type Purchase struct {
	ID          string
	CreatedAt   string
	AmountCents int64
}

// Product is a course-platform product with its member count.
type Product struct {
	Title   string
	Members int
}

// CustomerWindowStats aggregates the customers created inside one window.
type CustomerWindowStats struct {
	Count     int
	Total     int // platform-wide customer count, from the first page's meta
	Daily     []TrendPoint
	Customers []Customer
}
