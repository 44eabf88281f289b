package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3"
)

var dialect = goqu.Dialect("sqlite3")

// Database owns the SQLite connection and hands out Store views bound either
// to the plain connection or to a transaction.
type Database struct {
	db *sqlx.DB
}

// NewDatabase opens (or creates) the SQLite database at dbPath and applies
// schema migrations.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Enable busy_timeout and foreign keys.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Database{db: db}, nil
}

// Close closes the DB.
func (d *Database) Close() error { return d.db.Close() }

// Store returns a non-transactional view.
func (d *Database) Store() *Store { return &Store{ext: d.db} }

// InTx runs fn inside a single transaction. Any error rolls everything back,
// so cross-entity mutations (borrowing row plus copy counter) commit or fail
// as one unit.
func (d *Database) InTx(fn func(*Store) error) error {
	tx, err := d.db.Beginx()
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{ext: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit tx", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sqlx.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            book_id INTEGER PRIMARY KEY AUTOINCREMENT,
            isbn TEXT NOT NULL UNIQUE,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            publisher TEXT NOT NULL DEFAULT '',
            publication_year INTEGER,
            genre TEXT NOT NULL DEFAULT '',
            total_copies INTEGER NOT NULL DEFAULT 1,
            available_copies INTEGER NOT NULL DEFAULT 1,
            CHECK (available_copies >= 0 AND available_copies <= total_copies)
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            member_id INTEGER PRIMARY KEY AUTOINCREMENT,
            member_code TEXT NOT NULL UNIQUE,
            first_name TEXT NOT NULL,
            last_name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            phone TEXT NOT NULL DEFAULT '',
            address TEXT NOT NULL DEFAULT '',
            membership_date DATE NOT NULL,
            membership_status TEXT NOT NULL DEFAULT 'ACTIVE',
            max_books_allowed INTEGER NOT NULL DEFAULT 5
        );`,
		// Cascades purge closed history when a book or member is removed;
		// the service refuses the delete while any borrowing is still open.
		`CREATE TABLE IF NOT EXISTS borrowings (
            borrowing_id INTEGER PRIMARY KEY AUTOINCREMENT,
            book_id INTEGER NOT NULL REFERENCES books(book_id) ON DELETE CASCADE,
            member_id INTEGER NOT NULL REFERENCES members(member_id) ON DELETE CASCADE,
            borrow_date DATE NOT NULL,
            due_date DATE NOT NULL,
            return_date DATE,
            status TEXT NOT NULL DEFAULT 'BORROWED',
            fine_amount TEXT NOT NULL DEFAULT '0'
        );`,
		`CREATE INDEX IF NOT EXISTS idx_borrowings_member ON borrowings(member_id);`,
		`CREATE INDEX IF NOT EXISTS idx_borrowings_book ON borrowings(book_id);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

// Store exposes the persistence operations the service needs. The same
// methods work on the live connection or inside InTx because sqlx.Ext is
// satisfied by both.
type Store struct {
	ext sqlx.Ext
}

const (
	bookColumns      = `book_id, isbn, title, author, publisher, publication_year, genre, total_copies, available_copies`
	memberColumns    = `member_id, member_code, first_name, last_name, email, phone, address, membership_date, membership_status, max_books_allowed`
	borrowingColumns = `borrowing_id, book_id, member_id, borrow_date, due_date, return_date, status, fine_amount`
)

// ------------------ Books ------------------

// InsertBook stores a new book and assigns its generated id.
func (s *Store) InsertBook(b *Book) error {
	res, err := s.ext.Exec(
		`INSERT INTO books (isbn, title, author, publisher, publication_year, genre, total_copies, available_copies)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ISBN, b.Title, b.Author, b.Publisher, b.PublicationYear, b.Genre, b.TotalCopies, b.AvailableCopies)
	if err != nil {
		if isUniqueViolation(err, "books.isbn") {
			return ErrDuplicateISBN
		}
		return storageErr("insert book", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("insert book id", err)
	}
	b.BookID = id
	return nil
}

// GetBook fetches a book by id.
func (s *Store) GetBook(id int64) (*Book, error) {
	var b Book
	err := sqlx.Get(s.ext, &b, `SELECT `+bookColumns+` FROM books WHERE book_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, storageErr("get book", err)
	}
	return &b, nil
}

// GetBookByISBN fetches a book by its unique ISBN.
func (s *Store) GetBookByISBN(isbn string) (*Book, error) {
	var b Book
	err := sqlx.Get(s.ext, &b, `SELECT `+bookColumns+` FROM books WHERE isbn = ?`, isbn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, storageErr("get book by isbn", err)
	}
	return &b, nil
}

// UpdateBook rewrites every mutable column of an existing book.
func (s *Store) UpdateBook(b *Book) error {
	res, err := s.ext.Exec(
		`UPDATE books SET isbn=?, title=?, author=?, publisher=?, publication_year=?, genre=?, total_copies=?, available_copies=?
         WHERE book_id=?`,
		b.ISBN, b.Title, b.Author, b.Publisher, b.PublicationYear, b.Genre, b.TotalCopies, b.AvailableCopies, b.BookID)
	if err != nil {
		if isUniqueViolation(err, "books.isbn") {
			return ErrDuplicateISBN
		}
		return storageErr("update book", err)
	}
	return expectOneRow(res, "update book", ErrBookNotFound)
}

// DeleteBook removes a book row. Borrowing guards live in the service.
func (s *Store) DeleteBook(id int64) error {
	res, err := s.ext.Exec(`DELETE FROM books WHERE book_id=?`, id)
	if err != nil {
		return storageErr("delete book", err)
	}
	return expectOneRow(res, "delete book", ErrBookNotFound)
}

// ListBooks returns the whole catalog.
func (s *Store) ListBooks() ([]*Book, error) {
	var books []*Book
	err := sqlx.Select(s.ext, &books, `SELECT `+bookColumns+` FROM books ORDER BY book_id`)
	if err != nil {
		return nil, storageErr("list books", err)
	}
	return books, nil
}

// BookFilter narrows a catalog search. Zero fields match everything.
type BookFilter struct {
	Title         string
	Author        string
	Genre         string
	AvailableOnly bool
}

// SearchBooks runs a filtered catalog query.
func (s *Store) SearchBooks(f BookFilter) ([]*Book, error) {
	ds := dialect.From("books").Select(goqu.L(bookColumns)).Order(goqu.C("book_id").Asc())
	if f.Title != "" {
		ds = ds.Where(goqu.C("title").ILike("%" + f.Title + "%"))
	}
	if f.Author != "" {
		ds = ds.Where(goqu.C("author").ILike("%" + f.Author + "%"))
	}
	if f.Genre != "" {
		ds = ds.Where(goqu.C("genre").ILike("%" + f.Genre + "%"))
	}
	if f.AvailableOnly {
		ds = ds.Where(goqu.C("available_copies").Gt(0))
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, storageErr("build book search", err)
	}
	var books []*Book
	if err := sqlx.Select(s.ext, &books, query, args...); err != nil {
		return nil, storageErr("search books", err)
	}
	return books, nil
}

// TakeCopy atomically claims one available copy. The availability check and
// the decrement are a single conditional UPDATE, so two borrowers cannot both
// win the last copy.
func (s *Store) TakeCopy(bookID int64) error {
	res, err := s.ext.Exec(
		`UPDATE books SET available_copies = available_copies - 1
         WHERE book_id = ? AND available_copies > 0`, bookID)
	if err != nil {
		return storageErr("take copy", err)
	}
	return expectOneRow(res, "take copy", ErrNoCopiesAvailable)
}

// PutBackCopy atomically shelves one copy, guarded so the counter can never
// exceed total_copies.
func (s *Store) PutBackCopy(bookID int64) error {
	res, err := s.ext.Exec(
		`UPDATE books SET available_copies = available_copies + 1
         WHERE book_id = ? AND available_copies < total_copies`, bookID)
	if err != nil {
		return storageErr("put back copy", err)
	}
	return expectOneRow(res, "put back copy", ErrAllCopiesAvailable)
}

// ------------------ Members ------------------

// InsertMember stores a new member and assigns its generated id.
func (s *Store) InsertMember(m *Member) error {
	res, err := s.ext.Exec(
		`INSERT INTO members (member_code, first_name, last_name, email, phone, address, membership_date, membership_status, max_books_allowed)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MemberCode, m.FirstName, m.LastName, m.Email, m.Phone, m.Address, m.MembershipDate, m.Status, m.MaxBooksAllowed)
	if err != nil {
		switch {
		case isUniqueViolation(err, "members.member_code"):
			return ErrDuplicateMemberCode
		case isUniqueViolation(err, "members.email"):
			return ErrDuplicateEmail
		}
		return storageErr("insert member", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("insert member id", err)
	}
	m.MemberID = id
	return nil
}

// GetMember fetches a member by id.
func (s *Store) GetMember(id int64) (*Member, error) {
	var m Member
	err := sqlx.Get(s.ext, &m, `SELECT `+memberColumns+` FROM members WHERE member_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, storageErr("get member", err)
	}
	return &m, nil
}

// GetMemberByCode fetches a member by the unique member code.
func (s *Store) GetMemberByCode(code string) (*Member, error) {
	var m Member
	err := sqlx.Get(s.ext, &m, `SELECT `+memberColumns+` FROM members WHERE member_code = ?`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, storageErr("get member by code", err)
	}
	return &m, nil
}

// GetMemberByEmail fetches a member by the unique email.
func (s *Store) GetMemberByEmail(email string) (*Member, error) {
	var m Member
	err := sqlx.Get(s.ext, &m, `SELECT `+memberColumns+` FROM members WHERE email = ?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, storageErr("get member by email", err)
	}
	return &m, nil
}

// UpdateMember rewrites every mutable column of an existing member.
func (s *Store) UpdateMember(m *Member) error {
	res, err := s.ext.Exec(
		`UPDATE members SET member_code=?, first_name=?, last_name=?, email=?, phone=?, address=?, membership_date=?, membership_status=?, max_books_allowed=?
         WHERE member_id=?`,
		m.MemberCode, m.FirstName, m.LastName, m.Email, m.Phone, m.Address, m.MembershipDate, m.Status, m.MaxBooksAllowed, m.MemberID)
	if err != nil {
		switch {
		case isUniqueViolation(err, "members.member_code"):
			return ErrDuplicateMemberCode
		case isUniqueViolation(err, "members.email"):
			return ErrDuplicateEmail
		}
		return storageErr("update member", err)
	}
	return expectOneRow(res, "update member", ErrMemberNotFound)
}

// UpdateMemberStatus changes only the membership status.
func (s *Store) UpdateMemberStatus(id int64, status MembershipStatus) error {
	res, err := s.ext.Exec(`UPDATE members SET membership_status=? WHERE member_id=?`, status, id)
	if err != nil {
		return storageErr("update member status", err)
	}
	return expectOneRow(res, "update member status", ErrMemberNotFound)
}

// DeleteMember removes a member row. Borrowing guards live in the service.
func (s *Store) DeleteMember(id int64) error {
	res, err := s.ext.Exec(`DELETE FROM members WHERE member_id=?`, id)
	if err != nil {
		return storageErr("delete member", err)
	}
	return expectOneRow(res, "delete member", ErrMemberNotFound)
}

// ListMembers returns all members.
func (s *Store) ListMembers() ([]*Member, error) {
	var members []*Member
	err := sqlx.Select(s.ext, &members, `SELECT `+memberColumns+` FROM members ORDER BY member_id`)
	if err != nil {
		return nil, storageErr("list members", err)
	}
	return members, nil
}

// MemberFilter narrows a membership search.
type MemberFilter struct {
	Name       string
	ActiveOnly bool
}

// SearchMembers runs a filtered membership query. The name filter matches
// first or last name.
func (s *Store) SearchMembers(f MemberFilter) ([]*Member, error) {
	ds := dialect.From("members").Select(goqu.L(memberColumns)).Order(goqu.C("member_id").Asc())
	if f.Name != "" {
		pattern := "%" + f.Name + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("first_name").ILike(pattern),
			goqu.C("last_name").ILike(pattern),
		))
	}
	if f.ActiveOnly {
		ds = ds.Where(goqu.C("membership_status").Eq(string(StatusActive)))
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, storageErr("build member search", err)
	}
	var members []*Member
	if err := sqlx.Select(s.ext, &members, query, args...); err != nil {
		return nil, storageErr("search members", err)
	}
	return members, nil
}

// ------------------ Borrowings ------------------

// InsertBorrowing stores a new borrowing record and assigns its generated id.
func (s *Store) InsertBorrowing(b *Borrowing) error {
	res, err := s.ext.Exec(
		`INSERT INTO borrowings (book_id, member_id, borrow_date, due_date, return_date, status, fine_amount)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.BookID, b.MemberID, b.BorrowDate, b.DueDate, b.ReturnDate, b.Status, b.FineAmount)
	if err != nil {
		return storageErr("insert borrowing", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("insert borrowing id", err)
	}
	b.BorrowingID = id
	return nil
}

// GetBorrowing fetches a borrowing by id.
func (s *Store) GetBorrowing(id int64) (*Borrowing, error) {
	var b Borrowing
	err := sqlx.Get(s.ext, &b, `SELECT `+borrowingColumns+` FROM borrowings WHERE borrowing_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBorrowingNotFound
	}
	if err != nil {
		return nil, storageErr("get borrowing", err)
	}
	return &b, nil
}

// MarkReturned closes a borrowing: return date, fine and terminal status in
// one statement. The return_date IS NULL guard makes a double return lose.
func (s *Store) MarkReturned(id int64, returnDate Date, fine decimal.Decimal) error {
	res, err := s.ext.Exec(
		`UPDATE borrowings SET return_date=?, fine_amount=?, status=?
         WHERE borrowing_id=? AND return_date IS NULL`,
		returnDate, fine, StatusReturned, id)
	if err != nil {
		return storageErr("mark returned", err)
	}
	return expectOneRow(res, "mark returned", ErrAlreadyReturned)
}

// BorrowingFilter narrows a borrowing query. Zero fields match everything.
type BorrowingFilter struct {
	BookID   int64
	MemberID int64
	Status   BorrowingStatus
	// OpenOnly keeps records whose copy is still out (return_date IS NULL,
	// the ground truth behind the BORROWED/OVERDUE labels).
	OpenOnly bool
	// OverdueAsOf keeps open records whose due date has passed.
	OverdueAsOf *Date
}

// FindBorrowings runs a filtered borrowing query, newest first.
func (s *Store) FindBorrowings(f BorrowingFilter) ([]*Borrowing, error) {
	ds := dialect.From("borrowings").Select(goqu.L(borrowingColumns)).
		Order(goqu.C("borrow_date").Desc(), goqu.C("borrowing_id").Desc())
	if f.BookID > 0 {
		ds = ds.Where(goqu.C("book_id").Eq(f.BookID))
	}
	if f.MemberID > 0 {
		ds = ds.Where(goqu.C("member_id").Eq(f.MemberID))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(string(f.Status)))
	}
	if f.OpenOnly || f.OverdueAsOf != nil {
		ds = ds.Where(goqu.C("return_date").IsNull())
	}
	if f.OverdueAsOf != nil {
		ds = ds.Where(goqu.C("due_date").Lt(f.OverdueAsOf.String())).
			Order(goqu.C("due_date").Asc())
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, storageErr("build borrowing query", err)
	}
	var borrowings []*Borrowing
	if err := sqlx.Select(s.ext, &borrowings, query, args...); err != nil {
		return nil, storageErr("find borrowings", err)
	}
	return borrowings, nil
}

// CountOpenBorrowings counts a member's not-yet-returned borrowings.
func (s *Store) CountOpenBorrowings(memberID int64) (int, error) {
	var n int
	err := sqlx.Get(s.ext, &n,
		`SELECT COUNT(*) FROM borrowings WHERE member_id = ? AND return_date IS NULL`, memberID)
	if err != nil {
		return 0, storageErr("count open borrowings", err)
	}
	return n, nil
}

// ListBorrowingDetails returns every borrowing joined with book and member
// display fields, newest first.
func (s *Store) ListBorrowingDetails() ([]*BorrowingDetail, error) {
	var details []*BorrowingDetail
	err := sqlx.Select(s.ext, &details, `
        SELECT b.borrowing_id, b.book_id, b.member_id, b.borrow_date, b.due_date,
               b.return_date, b.status, b.fine_amount,
               bk.title AS book_title, bk.isbn AS book_isbn,
               m.member_code AS member_code,
               m.first_name || ' ' || m.last_name AS member_name
        FROM borrowings b
        JOIN books bk ON bk.book_id = b.book_id
        JOIN members m ON m.member_id = b.member_id
        ORDER BY b.borrow_date DESC, b.borrowing_id DESC`)
	if err != nil {
		return nil, storageErr("list borrowing details", err)
	}
	return details, nil
}

// ------------------ Helpers ------------------

func expectOneRow(res sql.Result, op string, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
