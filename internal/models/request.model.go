package models

// RequestMeta carries the request attributes hashed into audit fields.
// Raw values never reach storage.
type RequestMeta struct {
	IP        string
	UserAgent string
}
