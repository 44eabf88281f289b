package library

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MembershipStatus is the administrative state of a member account.
type MembershipStatus string

const (
	StatusActive    MembershipStatus = "ACTIVE"
	StatusSuspended MembershipStatus = "SUSPENDED"
	StatusExpired   MembershipStatus = "EXPIRED"
)

// BorrowingStatus labels a borrowing record. BORROWED and RETURNED are ground
// truth; OVERDUE is a display label recomputed from the dates.
type BorrowingStatus string

const (
	StatusBorrowed BorrowingStatus = "BORROWED"
	StatusReturned BorrowingStatus = "RETURNED"
	StatusOverdue  BorrowingStatus = "OVERDUE"
)

// DefaultMaxBooks is the borrowing limit assigned to new members unless
// overridden at registration.
const DefaultMaxBooks = 5

// Book represents a catalogued title and its copy counts.
type Book struct {
	BookID          int64  `db:"book_id" json:"book_id"`
	ISBN            string `db:"isbn" json:"isbn" validate:"required,isbn_shape"`
	Title           string `db:"title" json:"title" validate:"required"`
	Author          string `db:"author" json:"author" validate:"required"`
	Publisher       string `db:"publisher" json:"publisher,omitempty"`
	PublicationYear *int   `db:"publication_year" json:"publication_year,omitempty"`
	Genre           string `db:"genre" json:"genre,omitempty"`
	TotalCopies     int    `db:"total_copies" json:"total_copies" validate:"min=0"`
	AvailableCopies int    `db:"available_copies" json:"available_copies" validate:"min=0"`
}

// NewBook creates a single-copy book with the essential fields.
func NewBook(isbn, title, author string) *Book {
	return &Book{ISBN: isbn, Title: title, Author: author, TotalCopies: 1, AvailableCopies: 1}
}

// IsAvailable reports whether at least one copy can be borrowed.
func (b *Book) IsAvailable() bool { return b.AvailableCopies > 0 }

// BorrowedCopies is the number of copies currently out on loan.
func (b *Book) BorrowedCopies() int { return b.TotalCopies - b.AvailableCopies }

// Borrow takes one copy off the shelf.
func (b *Book) Borrow() error {
	if b.AvailableCopies <= 0 {
		return ErrNoCopiesAvailable
	}
	b.AvailableCopies--
	return nil
}

// ReturnCopy puts one copy back. Failing the guard means a return was
// recorded without a matching borrow, which the circulation flow never does.
func (b *Book) ReturnCopy() error {
	if b.AvailableCopies >= b.TotalCopies {
		return ErrAllCopiesAvailable
	}
	b.AvailableCopies++
	return nil
}

// NormalizedISBN strips everything but digits and the X check digit.
func NormalizedISBN(isbn string) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(isbn) {
		if (r >= '0' && r <= '9') || r == 'X' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Member represents a registered library member.
type Member struct {
	MemberID        int64            `db:"member_id" json:"member_id"`
	MemberCode      string           `db:"member_code" json:"member_code" validate:"required,member_code"`
	FirstName       string           `db:"first_name" json:"first_name" validate:"required"`
	LastName        string           `db:"last_name" json:"last_name" validate:"required"`
	Email           string           `db:"email" json:"email" validate:"required,email_shape"`
	Phone           string           `db:"phone" json:"phone,omitempty" validate:"omitempty,phone_chars"`
	Address         string           `db:"address" json:"address,omitempty"`
	MembershipDate  Date             `db:"membership_date" json:"membership_date" validate:"-"`
	Status          MembershipStatus `db:"membership_status" json:"membership_status" validate:"oneof=ACTIVE SUSPENDED EXPIRED"`
	MaxBooksAllowed int              `db:"max_books_allowed" json:"max_books_allowed" validate:"min=1,max=10"`
}

// NewMember creates an active member with the default borrowing limit,
// joined as of the given date.
func NewMember(code, firstName, lastName, email string, joined Date) *Member {
	return &Member{
		MemberCode:      code,
		FirstName:       firstName,
		LastName:        lastName,
		Email:           email,
		MembershipDate:  joined,
		Status:          StatusActive,
		MaxBooksAllowed: DefaultMaxBooks,
	}
}

// FullName joins first and last name for display.
func (m *Member) FullName() string { return m.FirstName + " " + m.LastName }

// IsActive reports whether the membership is in good standing.
func (m *Member) IsActive() bool { return m.Status == StatusActive }

// CanBorrowBooks is the member-side borrowing eligibility check. The open
// loan count is cross-entity data and is enforced by the service instead.
func (m *Member) CanBorrowBooks() bool { return m.IsActive() }

// Suspend, Activate and Expire are unconditional administrative setters;
// any status may transition to any other.
func (m *Member) Suspend() { m.Status = StatusSuspended }

func (m *Member) Activate() { m.Status = StatusActive }

func (m *Member) Expire() { m.Status = StatusExpired }

// Borrowing is one borrow transaction tying a book copy to a member.
type Borrowing struct {
	BorrowingID int64           `db:"borrowing_id" json:"borrowing_id"`
	BookID      int64           `db:"book_id" json:"book_id"`
	MemberID    int64           `db:"member_id" json:"member_id"`
	BorrowDate  Date            `db:"borrow_date" json:"borrow_date"`
	DueDate     Date            `db:"due_date" json:"due_date"`
	ReturnDate  NullDate        `db:"return_date" json:"return_date"`
	Status      BorrowingStatus `db:"status" json:"status"`
	FineAmount  decimal.Decimal `db:"fine_amount" json:"fine_amount"`
}

// NewBorrowing opens a borrowing record with no fine.
func NewBorrowing(bookID, memberID int64, borrowDate, dueDate Date) *Borrowing {
	return &Borrowing{
		BookID:     bookID,
		MemberID:   memberID,
		BorrowDate: borrowDate,
		DueDate:    dueDate,
		Status:     StatusBorrowed,
		FineAmount: decimal.Zero,
	}
}

// IsReturned reports whether the borrowing reached its terminal state.
func (b *Borrowing) IsReturned() bool {
	return b.Status == StatusReturned && b.ReturnDate.Valid
}

// IsCurrentlyBorrowed reports whether the book copy is still out.
func (b *Borrowing) IsCurrentlyBorrowed() bool {
	return b.Status == StatusBorrowed ||
		(b.Status == StatusOverdue && !b.ReturnDate.Valid)
}

// IsOverdue reports overdue-ness as of the given date. Once returned,
// overdue-ness is fixed by the return date: a timely return never becomes
// overdue no matter how late it is evaluated.
func (b *Borrowing) IsOverdue(asOf Date) bool {
	if b.ReturnDate.Valid {
		return b.ReturnDate.Date.After(b.DueDate)
	}
	return asOf.After(b.DueDate)
}

// DaysOverdue counts whole days past the due date as of the given date.
func (b *Borrowing) DaysOverdue(asOf Date) int {
	if b.ReturnDate.Valid {
		if d := b.DueDate.DaysUntil(b.ReturnDate.Date); d > 0 {
			return d
		}
		return 0
	}
	if b.IsOverdue(asOf) {
		return b.DueDate.DaysUntil(asOf)
	}
	return 0
}

// DaysBorrowed counts days from borrow to return (or to asOf while open).
func (b *Borrowing) DaysBorrowed(asOf Date) int {
	end := asOf
	if b.ReturnDate.Valid {
		end = b.ReturnDate.Date
	}
	return b.BorrowDate.DaysUntil(end)
}

// CalculateFine computes the accrued fine at the given daily rate. No cap,
// no grace period.
func (b *Borrowing) CalculateFine(asOf Date, dailyRate decimal.Decimal) decimal.Decimal {
	if !b.IsOverdue(asOf) {
		return decimal.Zero
	}
	return dailyRate.Mul(decimal.NewFromInt(int64(b.DaysOverdue(asOf)))).Round(2)
}

// ReturnAt closes the borrowing: return date, terminal status and fine are
// set together so no caller observes a half-returned record.
func (b *Borrowing) ReturnAt(asOf Date, dailyRate decimal.Decimal) error {
	if b.IsReturned() {
		return ErrAlreadyReturned
	}
	fine := b.CalculateFine(asOf, dailyRate)
	b.ReturnDate = SomeDate(asOf)
	b.Status = StatusReturned
	b.FineAmount = fine
	return nil
}

// MarkOverdue applies the OVERDUE display label. It never touches a returned
// record.
func (b *Borrowing) MarkOverdue(asOf Date) {
	if b.IsOverdue(asOf) && !b.IsReturned() {
		b.Status = StatusOverdue
	}
}

// UpdateStatus recomputes the display status from the dates.
func (b *Borrowing) UpdateStatus(asOf Date) {
	switch {
	case b.IsReturned():
		b.Status = StatusReturned
	case b.IsOverdue(asOf):
		b.Status = StatusOverdue
	default:
		b.Status = StatusBorrowed
	}
}

// BorrowingDetail is a borrowing joined with display fields from its book
// and member. The references are for presentation only; mutations always go
// through the owning rows.
type BorrowingDetail struct {
	Borrowing
	BookTitle  string `db:"book_title" json:"book_title"`
	BookISBN   string `db:"book_isbn" json:"book_isbn"`
	MemberCode string `db:"member_code" json:"member_code"`
	MemberName string `db:"member_name" json:"member_name"`
}

// Today is the current calendar date.
func Today() Date { return DateOf(time.Now()) }
