package library

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBook() *Book {
	year := 1949
	b := NewBook("9780451524935", "1984", "George Orwell")
	b.PublicationYear = &year
	return b
}

func validMember() *Member {
	return NewMember("ALICE01", "Alice", "Johnson", "alice@example.com", NewDate(2024, time.January, 1))
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.ErrorIs(t, err, ErrValidationFailed)
	fields := make([]string, len(ve.Violations))
	for i, v := range ve.Violations {
		fields[i] = v.Field
	}
	return fields
}

func TestValidateBookAcceptsValid(t *testing.T) {
	assert.NoError(t, ValidateBook(validBook(), NewDate(2024, time.June, 1)))
}

func TestValidateBookISBNShape(t *testing.T) {
	asOf := NewDate(2024, time.June, 1)
	for _, isbn := range []string{"9780451524935", "0451524934", "978-0-451-52493-5", "043942089X"} {
		b := validBook()
		b.ISBN = isbn
		assert.NoError(t, ValidateBook(b, asOf), "isbn %q", isbn)
	}
	for _, isbn := range []string{"", "12345", "97804515249350", "abcdefghij"} {
		b := validBook()
		b.ISBN = isbn
		assert.Error(t, ValidateBook(b, asOf), "isbn %q", isbn)
	}
}

func TestValidateBookRequiredFields(t *testing.T) {
	b := validBook()
	b.Title = ""
	b.Author = ""
	fields := fieldsOf(t, ValidateBook(b, NewDate(2024, time.June, 1)))
	assert.Contains(t, fields, "Title")
	assert.Contains(t, fields, "Author")
}

func TestValidateBookPublicationYear(t *testing.T) {
	// The year bound follows asOf, not the wall clock.
	asOf := NewDate(2024, time.June, 1)

	b := validBook()
	b.PublicationYear = nil
	assert.NoError(t, ValidateBook(b, asOf), "missing year is valid")

	early := 1799
	b.PublicationYear = &early
	fields := fieldsOf(t, ValidateBook(b, asOf))
	assert.Contains(t, fields, "PublicationYear")

	future := 2025
	b.PublicationYear = &future
	assert.Error(t, ValidateBook(b, asOf))

	current := 2024
	b.PublicationYear = &current
	assert.NoError(t, ValidateBook(b, asOf))

	lower := 1800
	b.PublicationYear = &lower
	assert.NoError(t, ValidateBook(b, asOf))
}

func TestValidateBookCopyInvariant(t *testing.T) {
	asOf := NewDate(2024, time.June, 1)
	b := validBook()
	b.TotalCopies = 1
	b.AvailableCopies = 2
	fields := fieldsOf(t, ValidateBook(b, asOf))
	assert.Contains(t, fields, "AvailableCopies")

	b.TotalCopies = 0
	b.AvailableCopies = 0
	assert.NoError(t, ValidateBook(b, asOf), "zero copies is a valid catalog entry")
}

func TestValidateMemberCodeLengthBounds(t *testing.T) {
	asOf := NewDate(2024, time.June, 1)

	m := validMember()
	m.MemberCode = "ab"
	assert.Error(t, ValidateMember(m, asOf), "2 chars is too short")

	m.MemberCode = "abc"
	assert.NoError(t, ValidateMember(m, asOf), "3 chars is the lower bound")

	m.MemberCode = "A1234567890123456789"
	assert.NoError(t, ValidateMember(m, asOf), "20 chars is the upper bound")

	m.MemberCode = "A12345678901234567890"
	assert.Error(t, ValidateMember(m, asOf), "21 chars is too long")

	m.MemberCode = "has space"
	assert.Error(t, ValidateMember(m, asOf))
}

func TestValidateMemberEmailShape(t *testing.T) {
	asOf := NewDate(2024, time.June, 1)
	valid := []string{"alice@example.com", "a.b+c_d@sub.domain.org"}
	invalid := []string{"", "alice", "alice@example", "alice@.com", "@example.com"}

	for _, email := range valid {
		m := validMember()
		m.Email = email
		assert.NoError(t, ValidateMember(m, asOf), "email %q", email)
	}
	for _, email := range invalid {
		m := validMember()
		m.Email = email
		assert.Error(t, ValidateMember(m, asOf), "email %q", email)
	}
}

func TestValidateMemberPhone(t *testing.T) {
	asOf := NewDate(2024, time.June, 1)

	m := validMember()
	m.Phone = ""
	assert.NoError(t, ValidateMember(m, asOf), "phone is optional")

	m.Phone = "+1 (555) 010-1234"
	assert.NoError(t, ValidateMember(m, asOf))

	m.Phone = "call me maybe"
	assert.Error(t, ValidateMember(m, asOf), "letters are rejected")

	// Charset-only check: punctuation-heavy strings pass.
	m.Phone = "(((("
	assert.NoError(t, ValidateMember(m, asOf))
}

func TestValidateMemberMaxBooksRange(t *testing.T) {
	asOf := NewDate(2024, time.June, 1)
	for _, n := range []int{1, 5, 10} {
		m := validMember()
		m.MaxBooksAllowed = n
		assert.NoError(t, ValidateMember(m, asOf), "max books %d", n)
	}
	for _, n := range []int{0, 11, -1} {
		m := validMember()
		m.MaxBooksAllowed = n
		assert.Error(t, ValidateMember(m, asOf), "max books %d", n)
	}
}

func TestValidateMemberMembershipDate(t *testing.T) {
	asOf := NewDate(2024, time.June, 1)

	m := validMember()
	m.MembershipDate = Date{}
	fields := fieldsOf(t, ValidateMember(m, asOf))
	assert.Contains(t, fields, "MembershipDate")

	m.MembershipDate = asOf.AddDays(1)
	assert.Error(t, ValidateMember(m, asOf), "future membership date")

	m.MembershipDate = asOf
	assert.NoError(t, ValidateMember(m, asOf))
}

func TestValidateMemberReportsAllViolations(t *testing.T) {
	m := &Member{Status: "BOGUS"}
	err := ValidateMember(m, NewDate(2024, time.June, 1))
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "MemberCode")
	assert.Contains(t, fields, "FirstName")
	assert.Contains(t, fields, "LastName")
	assert.Contains(t, fields, "Email")
	assert.Contains(t, fields, "Status")
	assert.Contains(t, fields, "MaxBooksAllowed")
	assert.Contains(t, fields, "MembershipDate")

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "member", ve.Entity)
}

func TestValidateBorrowing(t *testing.T) {
	borrowDate := NewDate(2024, time.January, 1)

	b := NewBorrowing(1, 1, borrowDate, borrowDate.AddDays(14))
	assert.NoError(t, ValidateBorrowing(b))

	sameDay := NewBorrowing(1, 1, borrowDate, borrowDate)
	assert.Error(t, ValidateBorrowing(sameDay), "same-day due date is invalid")

	missingIDs := NewBorrowing(0, 0, borrowDate, borrowDate.AddDays(14))
	fields := fieldsOf(t, ValidateBorrowing(missingIDs))
	assert.Contains(t, fields, "BookID")
	assert.Contains(t, fields, "MemberID")

	earlyReturn := NewBorrowing(1, 1, borrowDate, borrowDate.AddDays(14))
	earlyReturn.ReturnDate = SomeDate(borrowDate)
	assert.Error(t, ValidateBorrowing(earlyReturn), "return on the borrow date is invalid")

	negativeFine := NewBorrowing(1, 1, borrowDate, borrowDate.AddDays(14))
	negativeFine.FineAmount = decimal.RequireFromString("-1")
	assert.Error(t, ValidateBorrowing(negativeFine))
}
