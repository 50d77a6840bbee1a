package models

// UserSummary identifies a user of the tenant.
type UserSummary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	ImageURL *string `json:"imageUrl,omitempty"`
}
