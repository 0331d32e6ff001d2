package models

// Profile is the slice of a user's public profile the messaging surface
// needs: a display name and an avatar. Profiles are owned by an external
// service; this backend only reads them.
type Profile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profile_picture"`
	University     string `json:"university,omitempty"`
	Department     string `json:"department,omitempty"`
}
