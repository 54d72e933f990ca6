package models

// User is a board member tickets can be assigned to.
type User struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}
