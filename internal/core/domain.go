package core

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	CategoryPersonal Category = "personal"
	CategoryShared   Category = "shared"
)

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

const (
	ModeAutomatic ReportMode = "automatic"
	ModeManual    ReportMode = "manual"
)

type (
	Category   string
	Role       string
	ReportMode string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	LineItem struct {
		Label     string
		UnitPrice Money
		Quantity  int
	}

	// Attendance is one selected member and how many people they brought,
	// themselves included.
	Attendance struct {
		UID           string
		AttendeeCount int
	}

	Participant struct {
		UID           string
		AttendeeCount int
		Share         Money
	}

	Ticket struct {
		ID        string
		OwnerUID  string
		Date      Date
		CreatedAt time.Time
		Category  Category
		LineItems []LineItem
		Amount    Money

		// Shared-only fields; zero for personal tickets.
		EventLabel        string
		Participants      []Participant
		TotalAttendees    int
		AmountPerAttendee decimal.Decimal

		Description string
	}

	Member struct {
		ID          string
		Email       string
		DisplayName string
		Role        Role
	}

	// Viewer is the identity a totals query is evaluated for.
	Viewer struct {
		MemberID string
		Role     Role
	}

	MonthlyReport struct {
		ID            string
		Period        Period
		Mode          ReportMode
		PersonalTotal Money
		SharedTotal   Money
		GrandTotal    Money
		TicketCount   int
		MemberCount   int
		ArtifactPath  string
		ArtifactURL   string
		GeneratedAt   time.Time
	}
)

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidMode     = errors.New("invalid report mode")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (c Category) Validate() error {
	switch c {
	case CategoryPersonal, CategoryShared:
		return nil
	}
	return ErrInvalidCategory
}

func (m ReportMode) Validate() error {
	switch m {
	case ModeAutomatic, ModeManual:
		return nil
	}
	return ErrInvalidMode
}

// IsAdmin reports whether the viewer sees every member's figures.
func (v Viewer) IsAdmin() bool {
	return v.Role == RoleAdmin
}

// AdminViewer is the scope used by the monthly report.
func AdminViewer() Viewer {
	return Viewer{Role: RoleAdmin}
}

// Name returns the display name, falling back to the member id.
func (m Member) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.ID
}

// IsShared reports whether the ticket is split across participants.
func (t Ticket) IsShared() bool {
	return t.Category == CategoryShared
}

// ShareOf returns the amount a member owes on this ticket and whether
// they take part in it at all.
func (t Ticket) ShareOf(uid string) (Money, bool) {
	if !t.IsShared() {
		if t.OwnerUID == uid {
			return t.Amount, true
		}
		return Money{}, false
	}
	for _, p := range t.Participants {
		if p.UID == uid {
			return p.Share, true
		}
	}
	return Money{}, false
}
