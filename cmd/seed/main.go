package main

import (
	"fmt"
	"os"
	"strings"

	"library-system/library"
)

type bookFixture struct {
	isbn      string
	title     string
	author    string
	publisher string
	year      int
	genre     string
	copies    int
}

type memberFixture struct {
	code      string
	firstName string
	lastName  string
	email     string
	phone     string
	maxBooks  int
}

func main() {
	cfg := library.LoadConfig()

	// Clean up any existing database files
	fmt.Println("Cleaning up existing database files...")
	dbFiles := []string{cfg.DBPath, cfg.DBPath + "-shm", cfg.DBPath + "-wal"}
	for _, file := range dbFiles {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: Could not remove %s: %v\n", file, err)
		}
	}
	fmt.Println("Database cleanup complete.")

	logger, err := library.NewLogger(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := library.NewDatabase(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	svc := library.NewLibraryService(db, cfg, logger)

	books := []bookFixture{
		{"9780451524935", "1984", "George Orwell", "Signet Classics", 1949, "Dystopian", 3},
		{"9780452284241", "Animal Farm", "George Orwell", "Plume", 1945, "Satire", 2},
		{"9780141439518", "Pride and Prejudice", "Jane Austen", "Penguin Classics", 1813, "Romance", 2},
		{"9780547928227", "The Hobbit", "J.R.R. Tolkien", "Mariner Books", 1937, "Fantasy", 4},
		{"9780061120084", "To Kill a Mockingbird", "Harper Lee", "Harper Perennial", 1960, "Fiction", 3},
		{"9780743273565", "The Great Gatsby", "F. Scott Fitzgerald", "Scribner", 1925, "Fiction", 2},
		{"9780140449136", "Crime and Punishment", "Fyodor Dostoevsky", "Penguin Classics", 1866, "Fiction", 1},
		{"9780486282114", "Frankenstein", "Mary Shelley", "Dover Publications", 1818, "Horror", 2},
		{"9780590353427", "Harry Potter and the Sorcerer's Stone", "J.K. Rowling", "Scholastic", 1998, "Fantasy", 5},
		{"048629509X", "The Art of War", "Sun Tzu", "", 1910, "Philosophy", 1},
	}

	members := []memberFixture{
		{"ALICE01", "Alice", "Johnson", "alice.johnson@example.com", "555-0101", 5},
		{"BOB02", "Bob", "Smith", "bob.smith@example.com", "(555) 010-2222", 3},
		{"CAROL03", "Carol", "Diaz", "carol.diaz@example.com", "", 10},
		{"DAVE04", "Dave", "Nguyen", "dave.nguyen@example.com", "+1 555 0104", 1},
	}

	fmt.Println("Seeding catalog...")
	successCount := 0
	errorCount := 0
	for _, f := range books {
		book := library.NewBook(f.isbn, f.title, f.author)
		book.Publisher = f.publisher
		book.Genre = f.genre
		book.TotalCopies = f.copies
		book.AvailableCopies = f.copies
		if f.year > 0 {
			year := f.year
			book.PublicationYear = &year
		}

		fmt.Printf("Adding: %s by %s... ", f.title, f.author)
		if err := svc.AddBook(book); err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Printf("SUCCESS (ID: %d)\n", book.BookID)
		successCount++
	}

	fmt.Println("Seeding members...")
	for _, f := range members {
		member := library.NewMember(f.code, f.firstName, f.lastName, f.email, library.Today())
		member.Phone = f.phone
		member.MaxBooksAllowed = f.maxBooks

		fmt.Printf("Registering: %s %s... ", f.firstName, f.lastName)
		if err := svc.RegisterMember(member); err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Printf("SUCCESS (ID: %d)\n", member.MemberID)
		successCount++
	}

	// A couple of open borrowings so the circulation menus have data.
	fmt.Println("Creating sample borrowings...")
	for _, pair := range [][2]int64{{1, 1}, {4, 2}, {9, 3}} {
		if _, err := svc.BorrowBook(pair[0], pair[1]); err != nil {
			fmt.Printf("Warning: borrow book %d for member %d: %v\n", pair[0], pair[1], err)
			errorCount++
			continue
		}
		successCount++
	}

	fmt.Printf("\nSeed complete!\n")
	fmt.Printf("Successful operations: %d\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)

	if books, err := svc.ListBooks(); err == nil {
		fmt.Println("\nCatalog:")
		fmt.Printf("%-3s %-40s %-25s %s\n", "ID", "Title", "Author", "Copies")
		fmt.Println(strings.Repeat("-", 80))
		for _, b := range books {
			fmt.Printf("%-3d %-40s %-25s %d/%d\n",
				b.BookID, truncateString(b.Title, 40), truncateString(b.Author, 25),
				b.AvailableCopies, b.TotalCopies)
		}
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
