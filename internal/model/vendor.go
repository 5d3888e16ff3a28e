package model

import "time"

type VendorProfile struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ServiceType string    `json:"serviceType"`
	Description string    `json:"description"`
	Pricing     string    `json:"pricing"`
	Location    string    `json:"location"`
	Portfolio   []string  `json:"portfolio"`
	IsDeleted   bool      `json:"isDeleted"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type AssignmentStatus string

const (
	AssignmentPending    AssignmentStatus = "Pending"
	AssignmentInProgress AssignmentStatus = "In Progress"
	AssignmentDeclined   AssignmentStatus = "Declined"
	AssignmentCompleted  AssignmentStatus = "Completed"
	AssignmentPaid       AssignmentStatus = "Paid"
)

func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentPending, AssignmentInProgress, AssignmentDeclined, AssignmentCompleted, AssignmentPaid:
		return true
	}
	return false
}

type transition struct {
	from, to AssignmentStatus
}

// assignmentTransitions is the whole lifecycle: each legal edge and the role
// allowed to take it. Declined and Paid are terminal for status updates;
// a declined job can only be reopened through a client edit.
var assignmentTransitions = map[transition]Role{
	{AssignmentPending, AssignmentInProgress}:   RoleVendor,
	{AssignmentPending, AssignmentDeclined}:     RoleVendor,
	{AssignmentInProgress, AssignmentCompleted}: RoleVendor,
	{AssignmentCompleted, AssignmentPaid}:       RoleUser,
}

// TransitionActor returns the role allowed to move an assignment from one
// status to another, or false when the edge does not exist.
func TransitionActor(from, to AssignmentStatus) (Role, bool) {
	r, ok := assignmentTransitions[transition{from, to}]
	return r, ok
}

// TransitionTarget returns the role that sets status to, whatever the
// current status is. Pending has no owner: only a client edit returns there.
func TransitionTarget(to AssignmentStatus) (Role, bool) {
	for t, r := range assignmentTransitions {
		if t.to == to {
			return r, true
		}
	}
	return "", false
}

// Editable reports whether the client may change the terms, which sends the
// assignment back to Pending.
func (s AssignmentStatus) Editable() bool {
	return s == AssignmentPending || s == AssignmentDeclined
}

type VendorAssignment struct {
	ID          string           `json:"id"`
	EventID     string           `json:"eventId"`
	VendorID    string           `json:"vendorId"`
	ClientID    string           `json:"clientId"`
	ServiceType string           `json:"serviceType"`
	Amount      int64            `json:"amount"`
	Status      AssignmentStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func (a VendorAssignment) OwnerID() string { return a.ClientID }

// AssignmentDetails is an assignment with its references resolved. Each
// pointer is nil unless the caller asked for it.
type AssignmentDetails struct {
	VendorAssignment
	Vendor     *VendorProfile `json:"vendor,omitempty"`
	VendorUser *User          `json:"vendorUser,omitempty"`
	Event      *Event         `json:"event,omitempty"`
	Client     *User          `json:"client,omitempty"`
}
