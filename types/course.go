package types

import "time"

// Course is a purchasable item of the catalog.
type Course struct {
	// ID is the unique identifier of the course.
	ID int `json:"id" db:"id"`

	// Name is the human-readable title shown in the catalog and at checkout.
	Name string `json:"name" db:"name"`

	// Price is expressed in the smallest unit of the checkout currency.
	Price int64 `json:"price" db:"price"`

	// Description is the short catalog blurb.
	Description string `json:"description" db:"description"`

	// Icon is the emblem token displayed next to the course (e.g. an emoji).
	Icon string `json:"icon" db:"icon"`

	// VideoRef points at the externally hosted lesson video.
	VideoRef string `json:"video_ref" db:"video_ref"`

	// CoverKey is the object storage key of the uploaded cover image, if any.
	CoverKey string `json:"cover_key,omitempty" db:"cover_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
