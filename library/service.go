package library

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultLoanPeriodDays is the fixed loan period when none is configured.
const DefaultLoanPeriodDays = 14

// DefaultDailyFineRate is one dollar per overdue day.
var DefaultDailyFineRate = decimal.RequireFromString("1.00")

// LibraryService orchestrates books, members and borrowings. It is the only
// component that performs cross-entity transitions; every borrow or return
// runs inside one store transaction.
type LibraryService struct {
	db        *Database
	log       *zap.SugaredLogger
	loanDays  int
	dailyFine decimal.Decimal

	// now is injectable so tests can pin the clock.
	now func() time.Time
}

// NewLibraryService wires the service with its store and settings.
func NewLibraryService(db *Database, cfg *Config, logger *zap.Logger) *LibraryService {
	loanDays := DefaultLoanPeriodDays
	dailyFine := DefaultDailyFineRate
	if cfg != nil {
		if cfg.LoanPeriodDays > 0 {
			loanDays = cfg.LoanPeriodDays
		}
		if cfg.DailyFineRate.IsPositive() {
			dailyFine = cfg.DailyFineRate
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LibraryService{
		db:        db,
		log:       logger.Sugar(),
		loanDays:  loanDays,
		dailyFine: dailyFine,
		now:       time.Now,
	}
}

func (s *LibraryService) today() Date { return DateOf(s.now()) }

// ------------------ Book management ------------------

// AddBook validates the book and stores it, rejecting duplicate ISBNs.
func (s *LibraryService) AddBook(b *Book) error {
	if err := ValidateBook(b, s.today()); err != nil {
		return err
	}
	if err := s.db.Store().InsertBook(b); err != nil {
		return err
	}
	s.log.Infow("book added", "book_id", b.BookID, "isbn", b.ISBN, "title", b.Title)
	return nil
}

// GetBook fetches a book by id.
func (s *LibraryService) GetBook(id int64) (*Book, error) {
	return s.db.Store().GetBook(id)
}

// GetBookByISBN fetches a book by ISBN.
func (s *LibraryService) GetBookByISBN(isbn string) (*Book, error) {
	return s.db.Store().GetBookByISBN(isbn)
}

// ListBooks returns the whole catalog.
func (s *LibraryService) ListBooks() ([]*Book, error) {
	return s.db.Store().ListBooks()
}

// SearchBooks runs a filtered catalog search.
func (s *LibraryService) SearchBooks(f BookFilter) ([]*Book, error) {
	return s.db.Store().SearchBooks(f)
}

// AvailableBooks lists books with at least one loanable copy.
func (s *LibraryService) AvailableBooks() ([]*Book, error) {
	return s.db.Store().SearchBooks(BookFilter{AvailableOnly: true})
}

// UpdateBook validates and rewrites an existing catalog entry.
func (s *LibraryService) UpdateBook(b *Book) error {
	if err := ValidateBook(b, s.today()); err != nil {
		return err
	}
	if b.BookID <= 0 {
		return ErrBookNotFound
	}
	return s.db.Store().UpdateBook(b)
}

// DeleteBook removes a book unless one of its copies is still out.
func (s *LibraryService) DeleteBook(id int64) error {
	return s.db.InTx(func(tx *Store) error {
		if _, err := tx.GetBook(id); err != nil {
			return err
		}
		open, err := tx.FindBorrowings(BorrowingFilter{BookID: id, OpenOnly: true})
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return ErrHasOpenBorrowings
		}
		if err := tx.DeleteBook(id); err != nil {
			return err
		}
		s.log.Infow("book deleted", "book_id", id)
		return nil
	})
}

// ------------------ Member management ------------------

// RegisterMember validates the member and stores it, rejecting duplicate
// member codes and emails.
func (s *LibraryService) RegisterMember(m *Member) error {
	if err := ValidateMember(m, s.today()); err != nil {
		return err
	}
	if err := s.db.Store().InsertMember(m); err != nil {
		return err
	}
	s.log.Infow("member registered", "member_id", m.MemberID, "member_code", m.MemberCode)
	return nil
}

// GetMember fetches a member by id.
func (s *LibraryService) GetMember(id int64) (*Member, error) {
	return s.db.Store().GetMember(id)
}

// GetMemberByCode fetches a member by the unique member code.
func (s *LibraryService) GetMemberByCode(code string) (*Member, error) {
	return s.db.Store().GetMemberByCode(code)
}

// GetMemberByEmail fetches a member by the unique email.
func (s *LibraryService) GetMemberByEmail(email string) (*Member, error) {
	return s.db.Store().GetMemberByEmail(email)
}

// ListMembers returns all members.
func (s *LibraryService) ListMembers() ([]*Member, error) {
	return s.db.Store().ListMembers()
}

// SearchMembersByName matches against first or last name.
func (s *LibraryService) SearchMembersByName(name string) ([]*Member, error) {
	return s.db.Store().SearchMembers(MemberFilter{Name: name})
}

// ActiveMembers lists members in good standing.
func (s *LibraryService) ActiveMembers() ([]*Member, error) {
	return s.db.Store().SearchMembers(MemberFilter{ActiveOnly: true})
}

// UpdateMember validates and rewrites an existing member.
func (s *LibraryService) UpdateMember(m *Member) error {
	if err := ValidateMember(m, s.today()); err != nil {
		return err
	}
	if m.MemberID <= 0 {
		return ErrMemberNotFound
	}
	return s.db.Store().UpdateMember(m)
}

// UpdateMemberStatus applies an administrative status change. Any status may
// transition to any other.
func (s *LibraryService) UpdateMemberStatus(id int64, status MembershipStatus) error {
	switch status {
	case StatusActive, StatusSuspended, StatusExpired:
	default:
		return validationError("member", []Violation{{Field: "Status", Reason: "must be one of ACTIVE, SUSPENDED, EXPIRED"}})
	}
	if err := s.db.Store().UpdateMemberStatus(id, status); err != nil {
		return err
	}
	s.log.Infow("member status updated", "member_id", id, "status", status)
	return nil
}

// DeleteMember removes a member unless they still have a book out.
func (s *LibraryService) DeleteMember(id int64) error {
	return s.db.InTx(func(tx *Store) error {
		if _, err := tx.GetMember(id); err != nil {
			return err
		}
		open, err := tx.FindBorrowings(BorrowingFilter{MemberID: id, OpenOnly: true})
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return ErrHasOpenBorrowings
		}
		if err := tx.DeleteMember(id); err != nil {
			return err
		}
		s.log.Infow("member deleted", "member_id", id)
		return nil
	})
}

// ------------------ Circulation ------------------

// BorrowBook checks out one copy of a book to a member. The precondition
// ladder, the borrowing insert and the copy-count decrement all run in one
// transaction, so a concurrent borrower cannot slip between the availability
// check and the decrement.
func (s *LibraryService) BorrowBook(bookID, memberID int64) (*Borrowing, error) {
	var borrowing *Borrowing
	err := s.db.InTx(func(tx *Store) error {
		book, err := tx.GetBook(bookID)
		if err != nil {
			return err
		}
		if !book.IsAvailable() {
			return ErrNoCopiesAvailable
		}

		member, err := tx.GetMember(memberID)
		if err != nil {
			return err
		}
		if !member.CanBorrowBooks() {
			return ErrMemberNotActive
		}

		open, err := tx.CountOpenBorrowings(memberID)
		if err != nil {
			return err
		}
		if open >= member.MaxBooksAllowed {
			return ErrBorrowingLimitReached
		}

		borrowDate := s.today()
		b := NewBorrowing(bookID, memberID, borrowDate, borrowDate.AddDays(s.loanDays))
		if err := ValidateBorrowing(b); err != nil {
			return err
		}
		if err := tx.InsertBorrowing(b); err != nil {
			return err
		}
		if err := tx.TakeCopy(bookID); err != nil {
			return err
		}
		borrowing = b
		return nil
	})
	if err != nil {
		s.log.Warnw("borrow rejected", "book_id", bookID, "member_id", memberID, "reason", err)
		return nil, err
	}
	s.log.Infow("book borrowed",
		"borrowing_id", borrowing.BorrowingID, "book_id", bookID,
		"member_id", memberID, "due_date", borrowing.DueDate.String())
	return borrowing, nil
}

// ReturnBook closes a borrowing as of today, computes the fine, and shelves
// the copy. All three effects commit together.
func (s *LibraryService) ReturnBook(borrowingID int64) (*Borrowing, error) {
	var returned *Borrowing
	err := s.db.InTx(func(tx *Store) error {
		b, err := tx.GetBorrowing(borrowingID)
		if err != nil {
			return err
		}
		if b.IsReturned() {
			return ErrAlreadyReturned
		}

		// The catalog entry must still exist for an open borrowing.
		if _, err := tx.GetBook(b.BookID); err != nil {
			return err
		}

		if err := b.ReturnAt(s.today(), s.dailyFine); err != nil {
			return err
		}
		if err := tx.MarkReturned(b.BorrowingID, b.ReturnDate.Date, b.FineAmount); err != nil {
			return err
		}
		if err := tx.PutBackCopy(b.BookID); err != nil {
			return err
		}
		returned = b
		return nil
	})
	if err != nil {
		s.log.Warnw("return rejected", "borrowing_id", borrowingID, "reason", err)
		return nil, err
	}
	s.log.Infow("book returned",
		"borrowing_id", returned.BorrowingID, "book_id", returned.BookID,
		"fine", returned.FineAmount.StringFixed(2))
	return returned, nil
}

// ------------------ Borrowing queries ------------------

// MemberBorrowings returns a member's full borrowing history with the
// display status recomputed from the dates.
func (s *LibraryService) MemberBorrowings(memberID int64) ([]*Borrowing, error) {
	borrowings, err := s.db.Store().FindBorrowings(BorrowingFilter{MemberID: memberID})
	if err != nil {
		return nil, err
	}
	s.refreshStatuses(borrowings)
	return borrowings, nil
}

// BookBorrowings returns a book's full borrowing history.
func (s *LibraryService) BookBorrowings(bookID int64) ([]*Borrowing, error) {
	borrowings, err := s.db.Store().FindBorrowings(BorrowingFilter{BookID: bookID})
	if err != nil {
		return nil, err
	}
	s.refreshStatuses(borrowings)
	return borrowings, nil
}

// CurrentBorrowings returns every borrowing whose copy is still out.
func (s *LibraryService) CurrentBorrowings() ([]*Borrowing, error) {
	borrowings, err := s.db.Store().FindBorrowings(BorrowingFilter{OpenOnly: true})
	if err != nil {
		return nil, err
	}
	s.refreshStatuses(borrowings)
	return borrowings, nil
}

// OverdueBorrowings returns open borrowings past their due date as of today,
// oldest due date first. Overdue-ness is a projection over the dates, never
// read back from the stored status.
func (s *LibraryService) OverdueBorrowings() ([]*Borrowing, error) {
	asOf := s.today()
	borrowings, err := s.db.Store().FindBorrowings(BorrowingFilter{OverdueAsOf: &asOf})
	if err != nil {
		return nil, err
	}
	for _, b := range borrowings {
		b.MarkOverdue(asOf)
	}
	return borrowings, nil
}

// AllBorrowingsWithDetails returns every borrowing joined with book and
// member display fields.
func (s *LibraryService) AllBorrowingsWithDetails() ([]*BorrowingDetail, error) {
	details, err := s.db.Store().ListBorrowingDetails()
	if err != nil {
		return nil, err
	}
	asOf := s.today()
	for _, d := range details {
		d.UpdateStatus(asOf)
	}
	return details, nil
}

// AccruedFine reports the fine a borrowing would incur if returned today.
func (s *LibraryService) AccruedFine(borrowingID int64) (decimal.Decimal, error) {
	b, err := s.db.Store().GetBorrowing(borrowingID)
	if err != nil {
		return decimal.Zero, err
	}
	return b.CalculateFine(s.today(), s.dailyFine), nil
}

func (s *LibraryService) refreshStatuses(borrowings []*Borrowing) {
	asOf := s.today()
	for _, b := range borrowings {
		b.UpdateStatus(asOf)
	}
}

// ------------------ Reports ------------------

// Statistics is the aggregate snapshot shown on the reports menu.
type Statistics struct {
	TotalBooks        int
	TotalCopies       int
	AvailableCopies   int
	BorrowedCopies    int
	TotalMembers      int
	ActiveMembers     int
	CurrentBorrowings int
	OverdueBorrowings int
}

// GetStatistics aggregates simple counts over the whole library.
func (s *LibraryService) GetStatistics() (*Statistics, error) {
	books, err := s.ListBooks()
	if err != nil {
		return nil, err
	}
	members, err := s.ListMembers()
	if err != nil {
		return nil, err
	}
	current, err := s.CurrentBorrowings()
	if err != nil {
		return nil, err
	}
	overdue, err := s.OverdueBorrowings()
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		TotalBooks:        len(books),
		TotalMembers:      len(members),
		CurrentBorrowings: len(current),
		OverdueBorrowings: len(overdue),
	}
	for _, b := range books {
		stats.TotalCopies += b.TotalCopies
		stats.AvailableCopies += b.AvailableCopies
	}
	stats.BorrowedCopies = stats.TotalCopies - stats.AvailableCopies
	for _, m := range members {
		if m.IsActive() {
			stats.ActiveMembers++
		}
	}
	return stats, nil
}
