// Package errcode holds the error codes shared by the engine and the
// components that only log them.
package errcode

// Code represents a specific error condition
type Code string

const (
	ContainerNotFound Code = "CONTAINER_NOT_FOUND"
	PaginationUnknown Code = "PAGINATION_UNKNOWN"
	NavigationFailed  Code = "NAVIGATION_FAILED"
	ItemExtraction    Code = "ITEM_EXTRACTION"
	WaitTimeout       Code = "WAIT_TIMEOUT"
	SessionError      Code = "SESSION_ERROR"
	Validation        Code = "VALIDATION"
)
