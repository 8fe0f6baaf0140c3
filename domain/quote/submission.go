package quote

import "time"

// Submission is the quote request a visitor sends with their current selections.
type Submission struct {
	Name             string     `json:"name" validate:"required"`
	Phone            string     `json:"phone" validate:"required"`
	Email            string     `json:"email" validate:"required"`
	EventDate        string     `json:"eventDate,omitempty"`
	EventLocation    string     `json:"eventLocation,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	SelectedServices Collection `json:"selectedServices"`
}

// Receipt echoes the key fields of an accepted submission.
type Receipt struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Phone    string     `json:"phone"`
	Services Collection `json:"services"`
}

// Receipt builds the acknowledgement for an accepted submission.
func (s Submission) Receipt() Receipt {
	services := s.SelectedServices
	if services == nil {
		services = Collection{}
	}
	return Receipt{
		Name:     s.Name,
		Email:    s.Email,
		Phone:    s.Phone,
		Services: services,
	}
}

// EventQuoteSubmitted names the event raised for an accepted submission.
const EventQuoteSubmitted = "QuoteSubmitted"

// Submitted is the event raised once a submission has been accepted.
type Submitted struct {
	ID          string     `json:"id"`
	Submission  Submission `json:"submission"`
	SubmittedAt time.Time  `json:"submittedAt"`
}

// NewSubmitted wraps an accepted submission as an event.
func NewSubmitted(id string, s Submission, at time.Time) Submitted {
	if s.SelectedServices == nil {
		s.SelectedServices = Collection{}
	}
	return Submitted{ID: id, Submission: s, SubmittedAt: at.UTC()}
}
