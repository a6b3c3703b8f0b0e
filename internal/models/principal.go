package models

// Principal is the authenticated user behind a request or connection.
type Principal struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
