package model

import "time"

type ApplicationType string

const (
	Individual ApplicationType = "individual"
	Corporate  ApplicationType = "corporate"
)

type EventType string

const (
	Seminar    EventType = "seminar"
	Workshop   EventType = "workshop"
	Conference EventType = "conference"
)

func (e EventType) Valid() bool {
	switch e {
	case Seminar, Workshop, Conference:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// PeopleSentinel is the "5 or more" choice; the real count lives in ExactNumber.
const PeopleSentinel = "5"

type Application struct {
	ID                string          `db:"id" json:"id"`
	ApplicationType   ApplicationType `db:"application_type" json:"applicationType"`
	FullName          string          `db:"full_name" json:"fullName,omitempty"`
	Furigana          string          `db:"furigana" json:"furigana,omitempty"`
	CompanyName       string          `db:"company_name" json:"companyName,omitempty"`
	Department        string          `db:"department" json:"department,omitempty"`
	ContactPerson     string          `db:"contact_person" json:"contactPerson,omitempty"`
	Email             string          `db:"email" json:"email"`
	PhoneNumber       string          `db:"phone_number" json:"phoneNumber"`
	EventType         EventType       `db:"event_type" json:"eventType"`
	ParticipationDate string          `db:"participation_date" json:"participationDate"`
	NumberOfPeople    string          `db:"number_of_people" json:"numberOfPeople"`
	ExactNumber       string          `db:"exact_number" json:"exactNumber,omitempty"`
	Notes             string          `db:"notes" json:"notes,omitempty"`
	HearAbout         string          `db:"hear_about" json:"hearAbout,omitempty"`
	Status            Status          `db:"status" json:"status"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt,omitzero"`
}

// People resolves the sentinel choice to the exact head count.
func (a Application) People() string {
	if a.NumberOfPeople == PeopleSentinel {
		return a.ExactNumber
	}
	return a.NumberOfPeople
}

// RecipientName is the name used to address the applicant.
func (a Application) RecipientName() string {
	if a.ApplicationType == Individual {
		return a.FullName
	}
	return a.ContactPerson
}

// CanTransition reports whether a record in status from may move to status to.
// Re-applying the current status is allowed and treated as a no-op by stores.
func CanTransition(from, to Status) bool {
	switch {
	case from == to:
		return true
	case from == StatusPending && to == StatusCompleted:
		return true
	}
	return false
}
