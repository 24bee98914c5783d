package booking

import "fmt"

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusAccepted  BookingStatus = "accepted"
	StatusDeclined  BookingStatus = "declined"
	StatusStarted   BookingStatus = "started"
	StatusCompleted BookingStatus = "completed"
)

// validTransitions defines the state machine for carer driven status changes.
var validTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusAccepted, StatusDeclined},
	StatusAccepted:  {StatusStarted},
	StatusStarted:   {StatusCompleted},
	StatusDeclined:  {},
	StatusCompleted: {},
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []BookingStatus {
	return []BookingStatus{StatusPending, StatusAccepted, StatusDeclined, StatusStarted, StatusCompleted}
}
