package models

import "encoding/json"

// ImportFile is the top-level shape of a store import dataset.
type ImportFile struct {
	Stores []RawStore `json:"stores"`
}

// RawStore is one loosely-typed record from an import dataset. Field shapes
// are not trusted: Category may be any JSON value (only a string array
// survives normalization) and most fields are optional.
type RawStore struct {
	StoreID       string          `json:"storeId"`
	Name          string          `json:"name"`
	Category      json.RawMessage `json:"category"`
	CuisineTypes  []string        `json:"cuisineTypes"`
	ContactNumber string          `json:"contactNumber"`
	Location      *GeoPoint       `json:"location"`
	Ratings       []float64       `json:"ratings"`
	TotalRatings  int             `json:"totalRatings"`
	Menus         []RawMenuItem   `json:"menus"`
	BusinessHours []RawHours      `json:"businessHours"`
	HappyHours    []RawHours      `json:"happyHours"`
	Is24Hours     bool            `json:"is24Hours"`
}

// RawMenuItem carries the source field names (itemId vs id).
type RawMenuItem struct {
	ItemID string  `json:"itemId"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Type   string  `json:"type"`
}

// RawHours is a single hours window as found in import data. Business hours
// use the open/close fields, happy hours the start/end fields.
type RawHours struct {
	OpenHour    int      `json:"openHour"`
	OpenMinute  int      `json:"openMinute"`
	CloseHour   int      `json:"closeHour"`
	CloseMinute int      `json:"closeMinute"`
	StartHour   int      `json:"startHour"`
	StartMinute int      `json:"startMinute"`
	EndHour     int      `json:"endHour"`
	EndMinute   int      `json:"endMinute"`
	IsNextDay   bool     `json:"isNextDay"`
	DaysOfWeek  []string `json:"daysOfWeek"`
}
