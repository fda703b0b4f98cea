package types

import "time"

// Ownership records that a user acquired a course. A (UserID, CourseID)
// pair exists at most once.
type Ownership struct {
	UserID     int       `json:"user_id" db:"user_id"`
	CourseID   int       `json:"course_id" db:"course_id"`
	AcquiredAt time.Time `json:"acquired_at" db:"acquired_at"`
}

// LearnerCourses groups the courses owned by a single non-admin user.
type LearnerCourses struct {
	User    User     `json:"user"`
	Courses []Course `json:"courses"`
}

// RevenueReport is the admin view over every non-admin purchase.
type RevenueReport struct {
	Learners []LearnerCourses `json:"learners"`
	// Total is the sum of course prices over all ownership rows of non-admin users.
	Total int64 `json:"total"`
}

// PurchaseEvent is published when a new ownership row is created.
type PurchaseEvent struct {
	ID          string    `json:"id"`
	UserID      int       `json:"user_id"`
	UserEmail   string    `json:"user_email"`
	CourseID    int       `json:"course_id"`
	CourseName  string    `json:"course_name"`
	Price       int64     `json:"price"`
	Currency    string    `json:"currency"`
	PurchasedAt time.Time `json:"purchased_at"`
}
