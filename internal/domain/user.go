package domain

// UserRef identifies a board participant. It is carried in presence records
// and tokens; the user directory itself lives outside this service.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
}
