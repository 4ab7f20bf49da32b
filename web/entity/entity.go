// Package entity defines the response envelope of the portal's JSON API.
package entity

// Msg is the body of every JSON response.
type Msg struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Obj     any    `json:"obj"`
}
