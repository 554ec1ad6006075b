package models

import "time"

// ValidCategories is the fixed category enumeration. Anything else found in
// import data is silently dropped during normalization.
var ValidCategories = []string{
	"happy_hour",
	"deals_and_discounts",
	"special_events",
	"all_you_can_eat",
}

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RatingSummary aggregates a store's ratings. Total is caller-supplied and
// may legitimately diverge from len(Scores).
type RatingSummary struct {
	Average float64   `json:"average"`
	Total   int       `json:"total"`
	Scores  []float64 `json:"scores"`
}

// MenuItem is a single menu entry in its canonical shape.
type MenuItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Type  string  `json:"type"`
}

// BusinessHours is one opening window.
type BusinessHours struct {
	OpenHour    int      `json:"openHour"`
	OpenMinute  int      `json:"openMinute"`
	CloseHour   int      `json:"closeHour"`
	CloseMinute int      `json:"closeMinute"`
	IsNextDay   bool     `json:"isNextDay"`
	DaysOfWeek  []string `json:"daysOfWeek"`
}

// HappyHours is one happy-hour window.
type HappyHours struct {
	StartHour   int      `json:"startHour"`
	StartMinute int      `json:"startMinute"`
	EndHour     int      `json:"endHour"`
	EndMinute   int      `json:"endMinute"`
	IsNextDay   bool     `json:"isNextDay"`
	DaysOfWeek  []string `json:"daysOfWeek"`
}

// Store is the document stored under stores/{id}.
//
// NameLower is the case-folded search key and is kept in sync with Name on
// every write. OwnerID is empty while the store is unowned; it is set if and
// only if some user lists the store in OwnedStores. Managers holds the ids
// of every manager-role user that lists this store in ManagedStores.
type Store struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	NameLower      string          `json:"nameLower"`
	Category       []string        `json:"category"`
	CuisineTypes   []string        `json:"cuisineTypes"`
	ContactNumber  string          `json:"contactNumber"`
	Location       GeoPoint        `json:"location"`
	Ratings        RatingSummary   `json:"ratings"`
	Menus          []MenuItem      `json:"menus"`
	BusinessHours  []BusinessHours `json:"businessHours"`
	HappyHours     []HappyHours    `json:"happyHours"`
	Is24Hours      bool            `json:"is24Hours"`
	OwnerID        string          `json:"ownerId"`
	Managers       []string        `json:"managers"`
	MenuCategories []string        `json:"menuCategories"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
