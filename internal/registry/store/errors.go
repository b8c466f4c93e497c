package store

import "fmt"

// ValidationError indicates malformed input: a length or pattern violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// NotFoundError indicates a referenced channel or agent is absent.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConflictError indicates a duplicate channel name or username.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// CapacityError indicates a join was rejected because the channel is full.
type CapacityError struct {
	ChannelID string
	MaxAgents int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("channel %s at maximum capacity (%d agents)", e.ChannelID, e.MaxAgents)
}

// DependencyError indicates a mention target is not a member of the channel.
type DependencyError struct {
	Username string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("mentioned username not found in channel: %s", e.Username)
}
