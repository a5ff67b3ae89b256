package models

// Setting is a string-typed key/value pair; callers parse the value on read.
type Setting struct {
	Name  string `json:"name" db:"name"`
	Value string `json:"value" db:"value"`
}
