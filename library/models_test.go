package library

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var oneDollar = decimal.RequireFromString("1.00")

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, time.January, 1)
	assert.Equal(t, "2024-01-01", d.String())
	assert.Equal(t, "2024-01-15", d.AddDays(14).String())
	assert.Equal(t, 14, d.DaysUntil(d.AddDays(14)))
	assert.Equal(t, -3, d.DaysUntil(d.AddDays(-3)))
	assert.True(t, d.AddDays(1).After(d))
	assert.True(t, d.Before(d.AddDays(1)))

	parsed, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", parsed.String())

	_, err = ParseDate("not-a-date")
	assert.Error(t, err)
}

func TestBookBorrowDecrementsUntilEmpty(t *testing.T) {
	book := NewBook("9780451524935", "1984", "George Orwell")
	book.TotalCopies = 3
	book.AvailableCopies = 3

	for i := 1; i <= 3; i++ {
		require.NoError(t, book.Borrow())
		assert.Equal(t, 3-i, book.AvailableCopies)
	}
	assert.False(t, book.IsAvailable())
	assert.ErrorIs(t, book.Borrow(), ErrNoCopiesAvailable)
	assert.Equal(t, 0, book.AvailableCopies)
}

func TestBookBorrowReturnRoundTrip(t *testing.T) {
	book := NewBook("9780451524935", "1984", "George Orwell")
	book.TotalCopies = 2
	book.AvailableCopies = 2

	require.NoError(t, book.Borrow())
	require.NoError(t, book.ReturnCopy())
	assert.Equal(t, 2, book.AvailableCopies)
}

func TestBookSingleCopy(t *testing.T) {
	book := NewBook("9780451524935", "1984", "George Orwell")
	require.Equal(t, 1, book.AvailableCopies)

	require.NoError(t, book.Borrow())
	assert.Equal(t, 0, book.AvailableCopies)
	assert.Equal(t, 1, book.BorrowedCopies())
	assert.ErrorIs(t, book.Borrow(), ErrNoCopiesAvailable)
}

func TestBookReturnCopyGuard(t *testing.T) {
	book := NewBook("9780451524935", "1984", "George Orwell")
	assert.ErrorIs(t, book.ReturnCopy(), ErrAllCopiesAvailable)
	assert.Equal(t, 1, book.AvailableCopies)
}

func TestNormalizedISBN(t *testing.T) {
	assert.Equal(t, "9780451524935", NormalizedISBN("978-0-451-52493-5"))
	assert.Equal(t, "048629509X", NormalizedISBN("0-486-29509-x"))
	assert.Equal(t, "", NormalizedISBN("no digits here"))
}

func TestMemberStatusTransitions(t *testing.T) {
	m := NewMember("ALICE01", "Alice", "Johnson", "alice@example.com", NewDate(2024, time.January, 1))
	assert.True(t, m.IsActive())
	assert.True(t, m.CanBorrowBooks())
	assert.Equal(t, DefaultMaxBooks, m.MaxBooksAllowed)

	m.Suspend()
	assert.Equal(t, StatusSuspended, m.Status)
	assert.False(t, m.CanBorrowBooks())

	m.Expire()
	assert.Equal(t, StatusExpired, m.Status)

	// Setters are unconditional; any state reaches any other.
	m.Activate()
	assert.True(t, m.IsActive())

	assert.Equal(t, "Alice Johnson", m.FullName())
}

func TestBorrowingOverdueBoundary(t *testing.T) {
	borrowDate := NewDate(2024, time.January, 1)
	b := NewBorrowing(1, 1, borrowDate, borrowDate.AddDays(14))

	for day := 0; day <= 14; day++ {
		assert.False(t, b.IsOverdue(borrowDate.AddDays(day)), "day %d", day)
	}
	assert.True(t, b.IsOverdue(borrowDate.AddDays(15)))
}

func TestBorrowingOpenOverdueFine(t *testing.T) {
	// Borrowed 2024-01-01, due 2024-01-15, evaluated 2024-01-20 while open.
	b := NewBorrowing(1, 1, NewDate(2024, time.January, 1), NewDate(2024, time.January, 15))
	asOf := NewDate(2024, time.January, 20)

	assert.True(t, b.IsOverdue(asOf))
	assert.Equal(t, 5, b.DaysOverdue(asOf))
	assert.Equal(t, "5.00", b.CalculateFine(asOf, oneDollar).StringFixed(2))
}

func TestBorrowingLateReturnFine(t *testing.T) {
	// Due 2024-01-15, returned 2024-01-18: three days late.
	b := NewBorrowing(1, 1, NewDate(2024, time.January, 1), NewDate(2024, time.January, 15))
	b.ReturnDate = SomeDate(NewDate(2024, time.January, 18))
	b.Status = StatusReturned

	anyLaterDay := NewDate(2024, time.June, 1)
	assert.True(t, b.IsOverdue(anyLaterDay))
	assert.Equal(t, 3, b.DaysOverdue(anyLaterDay))
	assert.Equal(t, "3.00", b.CalculateFine(anyLaterDay, oneDollar).StringFixed(2))
}

func TestBorrowingTimelyReturnNeverOverdue(t *testing.T) {
	b := NewBorrowing(1, 1, NewDate(2024, time.January, 1), NewDate(2024, time.January, 15))
	b.ReturnDate = SomeDate(NewDate(2024, time.January, 10))
	b.Status = StatusReturned

	// Overdue-ness was fixed at return time; evaluation date is irrelevant.
	farFuture := NewDate(2030, time.January, 1)
	assert.False(t, b.IsOverdue(farFuture))
	assert.Equal(t, 0, b.DaysOverdue(farFuture))
	assert.True(t, b.CalculateFine(farFuture, oneDollar).IsZero())
}

func TestFineMonotonicity(t *testing.T) {
	b := NewBorrowing(1, 1, NewDate(2024, time.January, 1), NewDate(2024, time.January, 15))
	prev := decimal.Zero
	for day := 0; day <= 30; day++ {
		asOf := b.DueDate.AddDays(day)
		fine := b.CalculateFine(asOf, oneDollar)
		expected := oneDollar.Mul(decimal.NewFromInt(int64(b.DaysOverdue(asOf))))
		assert.True(t, fine.Equal(expected), "day %d: fine %s", day, fine)
		assert.True(t, fine.GreaterThanOrEqual(prev), "fine decreased on day %d", day)
		prev = fine
	}
}

func TestReturnAtSetsAllEffects(t *testing.T) {
	b := NewBorrowing(1, 1, NewDate(2024, time.January, 1), NewDate(2024, time.January, 15))
	require.NoError(t, b.ReturnAt(NewDate(2024, time.January, 18), oneDollar))

	assert.True(t, b.IsReturned())
	assert.Equal(t, StatusReturned, b.Status)
	assert.Equal(t, "2024-01-18", b.ReturnDate.Date.String())
	assert.Equal(t, "3.00", b.FineAmount.StringFixed(2))

	// Terminal: a second return is rejected and recomputes nothing.
	err := b.ReturnAt(NewDate(2024, time.February, 1), oneDollar)
	assert.ErrorIs(t, err, ErrAlreadyReturned)
	assert.Equal(t, "3.00", b.FineAmount.StringFixed(2))
}

func TestMarkOverdueNeverTouchesReturned(t *testing.T) {
	b := NewBorrowing(1, 1, NewDate(2024, time.January, 1), NewDate(2024, time.January, 15))
	require.NoError(t, b.ReturnAt(NewDate(2024, time.January, 20), oneDollar))

	b.MarkOverdue(NewDate(2024, time.February, 1))
	assert.Equal(t, StatusReturned, b.Status)
}

func TestMarkOverdueLabelsOpenLateBorrowing(t *testing.T) {
	b := NewBorrowing(1, 1, NewDate(2024, time.January, 1), NewDate(2024, time.January, 15))

	b.MarkOverdue(NewDate(2024, time.January, 10))
	assert.Equal(t, StatusBorrowed, b.Status)

	b.MarkOverdue(NewDate(2024, time.January, 16))
	assert.Equal(t, StatusOverdue, b.Status)
	assert.True(t, b.IsCurrentlyBorrowed())
}

func TestUpdateStatusProjection(t *testing.T) {
	b := NewBorrowing(1, 1, NewDate(2024, time.January, 1), NewDate(2024, time.January, 15))

	b.UpdateStatus(NewDate(2024, time.January, 5))
	assert.Equal(t, StatusBorrowed, b.Status)

	b.UpdateStatus(NewDate(2024, time.January, 16))
	assert.Equal(t, StatusOverdue, b.Status)

	require.NoError(t, b.ReturnAt(NewDate(2024, time.January, 16), oneDollar))
	b.UpdateStatus(NewDate(2024, time.June, 1))
	assert.Equal(t, StatusReturned, b.Status)
}

func TestDaysBorrowed(t *testing.T) {
	b := NewBorrowing(1, 1, NewDate(2024, time.January, 1), NewDate(2024, time.January, 15))
	assert.Equal(t, 9, b.DaysBorrowed(NewDate(2024, time.January, 10)))

	b.ReturnDate = SomeDate(NewDate(2024, time.January, 12))
	assert.Equal(t, 11, b.DaysBorrowed(NewDate(2024, time.June, 1)))
}
