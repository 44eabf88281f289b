package library

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Validation patterns, matching what registration has always enforced. The
// phone pattern only constrains the character set, so punctuation-only
// values like "((((" pass; that leniency is deliberate.
var (
	emailPattern      = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phonePattern      = regexp.MustCompile(`^[\d\s\-()+]+$`)
	memberCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{3,20}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	must := func(err error) {
		if err != nil {
			panic(fmt.Sprintf("register validation: %v", err))
		}
	}
	must(v.RegisterValidation("isbn_shape", validISBNShape))
	must(v.RegisterValidation("email_shape", validEmailShape))
	must(v.RegisterValidation("phone_chars", validPhoneChars))
	must(v.RegisterValidation("member_code", validMemberCode))
	return v
}

// validISBNShape checks the normalized form is 10 or 13 characters. No
// checksum verification, shape only.
func validISBNShape(fl validator.FieldLevel) bool {
	n := len(NormalizedISBN(fl.Field().String()))
	return n == 10 || n == 13
}

func validEmailShape(fl validator.FieldLevel) bool {
	return emailPattern.MatchString(fl.Field().String())
}

func validPhoneChars(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

func validMemberCode(fl validator.FieldLevel) bool {
	return memberCodePattern.MatchString(fl.Field().String())
}

var violationReasons = map[string]string{
	"required":    "is required",
	"isbn_shape":  "must contain 10 or 13 digits",
	"email_shape": "must look like local@domain.tld",
	"phone_chars": "may only contain digits, spaces, dashes, parentheses and plus",
	"member_code": "must be 3-20 alphanumeric characters",
	"oneof":       "must be one of ACTIVE, SUSPENDED, EXPIRED",
}

func collectViolations(err error) []Violation {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []Violation{{Field: "-", Reason: err.Error()}}
	}
	out := make([]Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		reason, ok := violationReasons[fe.Tag()]
		if !ok {
			reason = fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}
		out = append(out, Violation{Field: fe.Field(), Reason: reason})
	}
	return out
}

func validationError(entity string, violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Entity: entity, Violations: violations}
}

// ValidateBook checks every book rule and reports all violations at once.
// asOf bounds the publication year.
func ValidateBook(b *Book, asOf Date) error {
	vs := collectViolations(validate.Struct(b))
	if y := b.PublicationYear; y != nil && (*y < 1800 || *y > asOf.Year()) {
		vs = append(vs, Violation{Field: "PublicationYear", Reason: "must be between 1800 and the current year"})
	}
	if b.AvailableCopies > b.TotalCopies {
		vs = append(vs, Violation{Field: "AvailableCopies", Reason: "cannot exceed total copies"})
	}
	return validationError("book", vs)
}

// ValidateMember checks every member rule, including the code and phone
// formats, in one pass. asOf bounds the membership date.
func ValidateMember(m *Member, asOf Date) error {
	vs := collectViolations(validate.Struct(m))
	if m.MembershipDate.IsZero() {
		vs = append(vs, Violation{Field: "MembershipDate", Reason: "is required"})
	} else if m.MembershipDate.After(asOf) {
		vs = append(vs, Violation{Field: "MembershipDate", Reason: "cannot be in the future"})
	}
	return validationError("member", vs)
}

// ValidateBorrowing checks the date and amount invariants of a borrowing
// record.
func ValidateBorrowing(b *Borrowing) error {
	var vs []Violation
	if b.BookID <= 0 {
		vs = append(vs, Violation{Field: "BookID", Reason: "is required"})
	}
	if b.MemberID <= 0 {
		vs = append(vs, Violation{Field: "MemberID", Reason: "is required"})
	}
	switch {
	case b.BorrowDate.IsZero():
		vs = append(vs, Violation{Field: "BorrowDate", Reason: "is required"})
	case b.DueDate.IsZero():
		vs = append(vs, Violation{Field: "DueDate", Reason: "is required"})
	case !b.BorrowDate.Before(b.DueDate):
		vs = append(vs, Violation{Field: "DueDate", Reason: "must be after the borrow date"})
	}
	if b.ReturnDate.Valid && !b.ReturnDate.Date.After(b.BorrowDate) {
		vs = append(vs, Violation{Field: "ReturnDate", Reason: "must be after the borrow date"})
	}
	if b.FineAmount.IsNegative() {
		vs = append(vs, Violation{Field: "FineAmount", Reason: "cannot be negative"})
	}
	return validationError("borrowing", vs)
}
