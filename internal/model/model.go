package model

import "time"

type Role string

const (
	RoleUser   Role = "user"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

type AccountState string

const (
	AccountActive     AccountState = "active"
	AccountAnonymized AccountState = "anonymized"
)

type User struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	Password   string     `json:"password,omitempty"`
	Role       Role       `json:"role"`
	Bio        string     `json:"bio"`
	Location   string     `json:"location"`
	Avatar     string     `json:"avatar"`
	IsBlocked  bool       `json:"isBlocked"`
	IsDeleted  bool       `json:"isDeleted"`
	OTP        string     `json:"otp,omitempty"`
	OTPExpires *time.Time `json:"otpExpires,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (u User) State() AccountState {
	if u.IsDeleted {
		return AccountAnonymized
	}
	return AccountActive
}

// CanSignIn is false for anonymized and blocked accounts.
func (u User) CanSignIn() bool {
	return u.State() == AccountActive && !u.IsBlocked
}

// Redacted drops the credential fields before a user leaves the service.
func (u User) Redacted() User {
	u.Password = ""
	u.OTP = ""
	u.OTPExpires = nil
	return u
}

type InvitationConfig struct {
	Theme         string `json:"theme"`
	CustomMessage string `json:"customMessage"`
	ShowMap       bool   `json:"showMap"`
}

type Event struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	Name             string           `json:"name"`
	Date             time.Time        `json:"date"`
	Time             string           `json:"time"`
	Type             string           `json:"type"`
	Location         string           `json:"location"`
	Description      string           `json:"description"`
	MapLink          string           `json:"mapLink"`
	InvitationConfig InvitationConfig `json:"invitationConfig"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

func (e Event) OwnerID() string { return e.UserID }

type InvitationType string

const (
	InvitationEmail InvitationType = "Email"
	InvitationInApp InvitationType = "InApp"
)

type GuestStatus string

const (
	GuestPending  GuestStatus = "Pending"
	GuestAccepted GuestStatus = "Accepted"
	GuestDeclined GuestStatus = "Declined"
)

type Guest struct {
	ID                  string         `json:"id"`
	EventID             string         `json:"eventId"`
	Name                string         `json:"name"`
	Email               string         `json:"email"`
	UserID              string         `json:"userId"`
	InvitationType      InvitationType `json:"invitationType"`
	Status              GuestStatus    `json:"status"`
	IsInvited           bool           `json:"isInvited"`
	InvitedAt           *time.Time     `json:"invitedAt,omitempty"`
	DietaryRestrictions string         `json:"dietaryRestrictions"`
	PlusOne             bool           `json:"plusOne"`
	PlusOneName         string         `json:"plusOneName"`
	Message             string         `json:"message"`
	RespondedAt         *time.Time     `json:"respondedAt,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
}

// ResetResponse clears the RSVP so the guest can answer again.
func (g *Guest) ResetResponse() {
	g.Status = GuestPending
	g.DietaryRestrictions = ""
	g.PlusOne = false
	g.PlusOneName = ""
	g.Message = ""
	g.RespondedAt = nil
}

// MaxAmount bounds every single money value, in minor units.
const MaxAmount int64 = 100_000_000_000

type Expense struct {
	Title     string    `json:"title"`
	Amount    int64     `json:"amount"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

type Budget struct {
	ID          string    `json:"id"`
	EventID     string    `json:"eventId"`
	TotalBudget int64     `json:"totalBudget"`
	Expenses    []Expense `json:"expenses"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (b Budget) Spent() int64 {
	var sum int64
	for _, e := range b.Expenses {
		sum += e.Amount
	}
	return sum
}

func (b Budget) Remaining() int64 {
	return b.TotalBudget - b.Spent()
}

func (b Budget) Overspent() bool {
	return b.Remaining() < 0
}

type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Counterpart is the other participant from userID's point of view.
func (m Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

type Payment struct {
	ID            string    `json:"id"`
	BookingID     string    `json:"bookingId"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"paymentMethod"`
	TransactionID string    `json:"transactionId"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}
