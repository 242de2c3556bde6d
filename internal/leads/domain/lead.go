// Package domain holds the lead model shared by the assignment engine,
// the outreach scheduler, and the conversation state machine.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lead lifecycle status. Transitions are one-directional
// except for the explicit return-to-pool action.
type Status string

const (
	StatusNew       Status = "new"
	StatusAssigned  Status = "assigned"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusConverted Status = "converted"
	StatusLost      Status = "lost"
	StatusReturned  Status = "returned"
)

// Channel is an outreach channel with its own attempt/backoff track.
type Channel string

const (
	ChannelSMS  Channel = "sms"
	ChannelCall Channel = "call"
)

// AssigneeKind distinguishes internal reps from subscribers.
type AssigneeKind string

const (
	AssigneeRep        AssigneeKind = "rep"
	AssigneeSubscriber AssigneeKind = "subscriber"
)

// Quality is the coarse lead-quality label derived from conversation analysis.
type Quality string

const (
	QualityHot  Quality = "hot"
	QualityWarm Quality = "warm"
	QualityCold Quality = "cold"
)

// MaxAttempts caps outreach attempts per channel. Once reached, the due
// timestamp is cleared permanently.
const MaxAttempts = 3

// RetryDelay is the fixed linear backoff applied after a failed send.
// Deliberately not exponential: send failures are usually transient
// provider or network issues that resolve within the hour.
const RetryDelay = time.Hour

// Lead is a prospective customer inquiry.
type Lead struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Phone     string
	Email     *string

	Street string
	City   string
	State  string
	Zip    string
	Lat    *float64
	Lng    *float64

	Status       Status
	Quality      *Quality
	AssigneeID   *uuid.UUID
	AssigneeKind *AssigneeKind
	// AssignedDistanceMiles is the audit distance recorded at assignment,
	// rounded to one decimal.
	AssignedDistanceMiles *float64

	CallAttempts    int
	SMSAttempts     int
	LastCallOutcome *string
	LastSMSOutcome  *string
	ScheduledCallAt *time.Time
	ScheduledSMSAt  *time.Time

	LastContactAt *time.Time
	SMSOutcome    *string
	// SMSMessageCount mirrors the linked conversation's running log length.
	SMSMessageCount int
	RemoveFromList  bool
	Source          *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName joins first and last name for display and AI context.
func (l *Lead) FullName() string {
	if l.LastName == "" {
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}

// HasCoordinates reports whether the lead carries geocoded coordinates.
func (l *Lead) HasCoordinates() bool {
	return l.Lat != nil && l.Lng != nil
}

// Attempts returns the attempt counter for a channel.
func (l *Lead) Attempts(channel Channel) int {
	if channel == ChannelCall {
		return l.CallAttempts
	}
	return l.SMSAttempts
}

// OutreachEligible reports whether the lead status still allows automated
// outreach. Contacted, converted and lost leads are left alone.
func (l *Lead) OutreachEligible() bool {
	return l.Status == StatusNew || l.Status == StatusAssigned
}

// QualityFromInterest maps an AI interest-level signal to a coarse
// lead-quality relabeling. Unknown signals map to nothing.
func QualityFromInterest(interestLevel string) (Quality, bool) {
	switch interestLevel {
	case "high", "very-high", "very high":
		return QualityHot, true
	case "medium", "moderate":
		return QualityWarm, true
	case "low", "not-interested", "not interested":
		return QualityCold, true
	default:
		return "", false
	}
}
