package models

// Status is the delivery state of a stop.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Toggle returns the opposite status.
func (s Status) Toggle() Status {
	if s == StatusCompleted {
		return StatusPending
	}

	return StatusCompleted
}

// Stop is a single delivery destination tracked on the route.
type Stop struct {
	ID          string      `json:"id"`          // ID is unique for the lifetime of the collection.
	Address     string      `json:"address"`     // Address is the resolved address label.
	Coordinates Coordinates `json:"coordinates"` // Coordinates of the destination.
	Status      Status      `json:"status"`      // Status is pending or completed.
	Order       int         `json:"order"`       // Order is the visit priority; gaps are allowed.
}

// Origin is an explicit starting point chosen by the courier.
type Origin struct {
	Address     string      `json:"address"`
	Coordinates Coordinates `json:"coordinates"`
}
