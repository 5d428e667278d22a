package entity

// Category is a descriptive expense classification
type Category struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Color    string  `json:"color"`
	Active   bool    `json:"active"`
	ParentID *string `json:"parent_id"`
}
