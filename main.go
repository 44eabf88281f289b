package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"library-system/library"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	root := &cobra.Command{
		Use:          "library-system",
		Short:        "Library catalog and circulation tracker",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, db, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()
			runMenu(bufio.NewScanner(os.Stdin), svc, db)
			return nil
		},
	}

	root.AddCommand(&cobra.Command{
		Use:          "stats",
		Short:        "Print library statistics",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()
			stats, err := svc.GetStatistics()
			if err != nil {
				return err
			}
			printStatistics(stats)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:          "overdue",
		Short:        "List overdue borrowings",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()
			overdue, err := svc.OverdueBorrowings()
			if err != nil {
				return err
			}
			printBorrowings(overdue)
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openService() (*library.LibraryService, *library.Database, func(), error) {
	cfg := library.LoadConfig()
	logger, err := library.NewLogger(cfg.LogMode)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := library.NewDatabase(cfg.DBPath)
	if err != nil {
		logger.Sync()
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	svc := library.NewLibraryService(db, cfg, logger)
	closeFn := func() {
		db.Close()
		logger.Sync()
	}
	return svc, db, closeFn, nil
}

// readPassword reads a password with terminal masking.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(bytePassword)), nil
}

// requireLibrarian gates destructive operations behind the librarian
// password, prompting to set one on first use.
func requireLibrarian(db *library.Database) bool {
	hasPassword, err := db.HasLibrarianPassword()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return false
	}
	if !hasPassword {
		fmt.Println("No librarian password set yet.")
		password, err := readPassword("Choose a librarian password: ")
		if err != nil || password == "" {
			fmt.Println("Error: password cannot be empty")
			return false
		}
		if err := db.SetLibrarianPassword(password); err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		fmt.Println("Librarian password set.")
		return true
	}

	password, err := readPassword("Librarian password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return false
	}
	if err := db.VerifyLibrarianPassword(password); err != nil {
		fmt.Println("Error: invalid librarian password")
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Menus
// ---------------------------------------------------------------------------

func runMenu(sc *bufio.Scanner, svc *library.LibraryService, db *library.Database) {
	fmt.Println("=== LIBRARY MANAGEMENT SYSTEM ===")
	for {
		fmt.Println("\n=== MAIN MENU ===")
		fmt.Println("1. Book Management")
		fmt.Println("2. Member Management")
		fmt.Println("3. Borrowing Management")
		fmt.Println("4. Reports")
		fmt.Println("5. Exit")

		switch promptChoice(sc) {
		case 1:
			bookMenu(sc, svc, db)
		case 2:
			memberMenu(sc, svc, db)
		case 3:
			borrowingMenu(sc, svc)
		case 4:
			reportsMenu(svc)
		case 5:
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Invalid choice. Please try again.")
		}
	}
}

func bookMenu(sc *bufio.Scanner, svc *library.LibraryService, db *library.Database) {
	for {
		fmt.Println("\n=== BOOK MANAGEMENT ===")
		fmt.Println("1. Add New Book")
		fmt.Println("2. View All Books")
		fmt.Println("3. Search Books")
		fmt.Println("4. Update Book")
		fmt.Println("5. Delete Book")
		fmt.Println("6. View Available Books")
		fmt.Println("7. Back to Main Menu")

		switch promptChoice(sc) {
		case 1:
			handleAddBook(sc, svc)
		case 2:
			listAndPrintBooks(svc.ListBooks)
		case 3:
			handleSearchBooks(sc, svc)
		case 4:
			handleUpdateBook(sc, svc)
		case 5:
			if requireLibrarian(db) {
				handleDeleteBook(sc, svc)
			}
		case 6:
			listAndPrintBooks(svc.AvailableBooks)
		case 7:
			return
		default:
			fmt.Println("Invalid choice. Please try again.")
		}
	}
}

func memberMenu(sc *bufio.Scanner, svc *library.LibraryService, db *library.Database) {
	for {
		fmt.Println("\n=== MEMBER MANAGEMENT ===")
		fmt.Println("1. Register New Member")
		fmt.Println("2. View All Members")
		fmt.Println("3. Search Members")
		fmt.Println("4. Update Member")
		fmt.Println("5. Update Member Status")
		fmt.Println("6. Delete Member")
		fmt.Println("7. View Active Members")
		fmt.Println("8. Back to Main Menu")

		switch promptChoice(sc) {
		case 1:
			handleRegisterMember(sc, svc)
		case 2:
			listAndPrintMembers(svc.ListMembers)
		case 3:
			handleSearchMembers(sc, svc)
		case 4:
			handleUpdateMember(sc, svc)
		case 5:
			handleUpdateMemberStatus(sc, svc)
		case 6:
			if requireLibrarian(db) {
				handleDeleteMember(sc, svc)
			}
		case 7:
			listAndPrintMembers(svc.ActiveMembers)
		case 8:
			return
		default:
			fmt.Println("Invalid choice. Please try again.")
		}
	}
}

func borrowingMenu(sc *bufio.Scanner, svc *library.LibraryService) {
	for {
		fmt.Println("\n=== BORROWING MANAGEMENT ===")
		fmt.Println("1. Borrow Book")
		fmt.Println("2. Return Book")
		fmt.Println("3. View Member Borrowings")
		fmt.Println("4. View Current Borrowings")
		fmt.Println("5. View Overdue Borrowings")
		fmt.Println("6. View All Borrowings (with details)")
		fmt.Println("7. Back to Main Menu")

		switch promptChoice(sc) {
		case 1:
			handleBorrowBook(sc, svc)
		case 2:
			handleReturnBook(sc, svc)
		case 3:
			handleMemberBorrowings(sc, svc)
		case 4:
			handleBorrowingList(svc.CurrentBorrowings)
		case 5:
			handleBorrowingList(svc.OverdueBorrowings)
		case 6:
			handleBorrowingDetails(svc)
		case 7:
			return
		default:
			fmt.Println("Invalid choice. Please try again.")
		}
	}
}

func reportsMenu(svc *library.LibraryService) {
	stats, err := svc.GetStatistics()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printStatistics(stats)
}

// ---------------------------------------------------------------------------
// Book handlers
// ---------------------------------------------------------------------------

func handleAddBook(sc *bufio.Scanner, svc *library.LibraryService) {
	isbn := promptLine(sc, "ISBN: ")
	title := promptLine(sc, "Title: ")
	author := promptLine(sc, "Author: ")

	book := library.NewBook(isbn, title, author)
	book.Publisher = promptLine(sc, "Publisher (optional): ")
	book.Genre = promptLine(sc, "Genre (optional): ")

	if yearStr := promptLine(sc, "Publication year (optional): "); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			fmt.Printf("Invalid year: %s\n", yearStr)
			return
		}
		book.PublicationYear = &year
	}
	if copiesStr := promptLine(sc, "Total copies [1]: "); copiesStr != "" {
		copies, err := strconv.Atoi(copiesStr)
		if err != nil {
			fmt.Printf("Invalid copy count: %s\n", copiesStr)
			return
		}
		book.TotalCopies = copies
		book.AvailableCopies = copies
	}

	if err := svc.AddBook(book); err != nil {
		fmt.Printf("Error adding book: %v\n", err)
		return
	}
	fmt.Printf("Added book ID %d: %s\n", book.BookID, book.Title)
}

func handleSearchBooks(sc *bufio.Scanner, svc *library.LibraryService) {
	filter := library.BookFilter{
		Title:  promptLine(sc, "Title contains (optional): "),
		Author: promptLine(sc, "Author contains (optional): "),
		Genre:  promptLine(sc, "Genre contains (optional): "),
	}
	books, err := svc.SearchBooks(filter)
	if err != nil {
		fmt.Printf("Error searching books: %v\n", err)
		return
	}
	printBooks(books)
}

func handleUpdateBook(sc *bufio.Scanner, svc *library.LibraryService) {
	id, ok := promptID(sc, "Book ID: ")
	if !ok {
		return
	}
	book, err := svc.GetBook(id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	if title := promptLine(sc, fmt.Sprintf("Title [%s]: ", book.Title)); title != "" {
		book.Title = title
	}
	if author := promptLine(sc, fmt.Sprintf("Author [%s]: ", book.Author)); author != "" {
		book.Author = author
	}
	if publisher := promptLine(sc, fmt.Sprintf("Publisher [%s]: ", book.Publisher)); publisher != "" {
		book.Publisher = publisher
	}
	if genre := promptLine(sc, fmt.Sprintf("Genre [%s]: ", book.Genre)); genre != "" {
		book.Genre = genre
	}
	if copiesStr := promptLine(sc, fmt.Sprintf("Total copies [%d]: ", book.TotalCopies)); copiesStr != "" {
		copies, err := strconv.Atoi(copiesStr)
		if err != nil {
			fmt.Printf("Invalid copy count: %s\n", copiesStr)
			return
		}
		// Keep the number of copies out on loan constant.
		borrowed := book.BorrowedCopies()
		if copies < borrowed {
			fmt.Printf("Cannot reduce below %d copies currently on loan\n", borrowed)
			return
		}
		book.TotalCopies = copies
		book.AvailableCopies = copies - borrowed
	}

	if err := svc.UpdateBook(book); err != nil {
		fmt.Printf("Error updating book: %v\n", err)
		return
	}
	fmt.Println("Book updated.")
}

func handleDeleteBook(sc *bufio.Scanner, svc *library.LibraryService) {
	id, ok := promptID(sc, "Book ID to delete: ")
	if !ok {
		return
	}
	if err := svc.DeleteBook(id); err != nil {
		fmt.Printf("Error deleting book: %v\n", err)
		return
	}
	fmt.Println("Book deleted.")
}

// ---------------------------------------------------------------------------
// Member handlers
// ---------------------------------------------------------------------------

func handleRegisterMember(sc *bufio.Scanner, svc *library.LibraryService) {
	code := promptLine(sc, "Member code: ")
	firstName := promptLine(sc, "First name: ")
	lastName := promptLine(sc, "Last name: ")
	email := promptLine(sc, "Email: ")

	member := library.NewMember(code, firstName, lastName, email, library.Today())
	member.Phone = promptLine(sc, "Phone (optional): ")
	member.Address = promptLine(sc, "Address (optional): ")

	if maxStr := promptLine(sc, fmt.Sprintf("Max books allowed [%d]: ", member.MaxBooksAllowed)); maxStr != "" {
		maxBooks, err := strconv.Atoi(maxStr)
		if err != nil {
			fmt.Printf("Invalid number: %s\n", maxStr)
			return
		}
		member.MaxBooksAllowed = maxBooks
	}

	if err := svc.RegisterMember(member); err != nil {
		fmt.Printf("Error registering member: %v\n", err)
		return
	}
	fmt.Printf("Registered member '%s' with ID %d\n", member.FullName(), member.MemberID)
}

func handleSearchMembers(sc *bufio.Scanner, svc *library.LibraryService) {
	name := promptLine(sc, "Name contains: ")
	members, err := svc.SearchMembersByName(name)
	if err != nil {
		fmt.Printf("Error searching members: %v\n", err)
		return
	}
	printMembers(members)
}

func handleUpdateMember(sc *bufio.Scanner, svc *library.LibraryService) {
	id, ok := promptID(sc, "Member ID: ")
	if !ok {
		return
	}
	member, err := svc.GetMember(id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	if firstName := promptLine(sc, fmt.Sprintf("First name [%s]: ", member.FirstName)); firstName != "" {
		member.FirstName = firstName
	}
	if lastName := promptLine(sc, fmt.Sprintf("Last name [%s]: ", member.LastName)); lastName != "" {
		member.LastName = lastName
	}
	if email := promptLine(sc, fmt.Sprintf("Email [%s]: ", member.Email)); email != "" {
		member.Email = email
	}
	if phone := promptLine(sc, fmt.Sprintf("Phone [%s]: ", member.Phone)); phone != "" {
		member.Phone = phone
	}
	if address := promptLine(sc, fmt.Sprintf("Address [%s]: ", member.Address)); address != "" {
		member.Address = address
	}
	if maxStr := promptLine(sc, fmt.Sprintf("Max books allowed [%d]: ", member.MaxBooksAllowed)); maxStr != "" {
		maxBooks, err := strconv.Atoi(maxStr)
		if err != nil {
			fmt.Printf("Invalid number: %s\n", maxStr)
			return
		}
		member.MaxBooksAllowed = maxBooks
	}

	if err := svc.UpdateMember(member); err != nil {
		fmt.Printf("Error updating member: %v\n", err)
		return
	}
	fmt.Println("Member updated.")
}

func handleUpdateMemberStatus(sc *bufio.Scanner, svc *library.LibraryService) {
	id, ok := promptID(sc, "Member ID: ")
	if !ok {
		return
	}
	status := strings.ToUpper(promptLine(sc, "New status (ACTIVE/SUSPENDED/EXPIRED): "))
	if err := svc.UpdateMemberStatus(id, library.MembershipStatus(status)); err != nil {
		fmt.Printf("Error updating status: %v\n", err)
		return
	}
	fmt.Println("Member status updated.")
}

func handleDeleteMember(sc *bufio.Scanner, svc *library.LibraryService) {
	id, ok := promptID(sc, "Member ID to delete: ")
	if !ok {
		return
	}
	if err := svc.DeleteMember(id); err != nil {
		fmt.Printf("Error deleting member: %v\n", err)
		return
	}
	fmt.Println("Member deleted.")
}

// ---------------------------------------------------------------------------
// Borrowing handlers
// ---------------------------------------------------------------------------

func handleBorrowBook(sc *bufio.Scanner, svc *library.LibraryService) {
	bookID, ok := promptID(sc, "Book ID: ")
	if !ok {
		return
	}
	memberID, ok := promptID(sc, "Member ID: ")
	if !ok {
		return
	}
	borrowing, err := svc.BorrowBook(bookID, memberID)
	if err != nil {
		fmt.Printf("Error borrowing book: %v\n", err)
		return
	}
	fmt.Printf("Borrowing ID %d created. Due date: %s\n", borrowing.BorrowingID, borrowing.DueDate)
}

func handleReturnBook(sc *bufio.Scanner, svc *library.LibraryService) {
	id, ok := promptID(sc, "Borrowing ID: ")
	if !ok {
		return
	}
	borrowing, err := svc.ReturnBook(id)
	if err != nil {
		fmt.Printf("Error returning book: %v\n", err)
		return
	}
	fmt.Printf("Book returned. Fine amount: $%s\n", borrowing.FineAmount.StringFixed(2))
}

func handleMemberBorrowings(sc *bufio.Scanner, svc *library.LibraryService) {
	id, ok := promptID(sc, "Member ID: ")
	if !ok {
		return
	}
	borrowings, err := svc.MemberBorrowings(id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printBorrowings(borrowings)
}

func handleBorrowingList(list func() ([]*library.Borrowing, error)) {
	borrowings, err := list()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printBorrowings(borrowings)
}

func handleBorrowingDetails(svc *library.LibraryService) {
	details, err := svc.AllBorrowingsWithDetails()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(details) == 0 {
		fmt.Println("No borrowings found.")
		return
	}
	fmt.Printf("%-5s %-30s %-15s %-20s %-12s %-12s %-10s %-8s\n",
		"ID", "Title", "ISBN", "Member", "Borrowed", "Due", "Status", "Fine")
	fmt.Println(strings.Repeat("-", 118))
	for _, d := range details {
		fmt.Printf("%-5d %-30s %-15s %-20s %-12s %-12s %-10s $%-7s\n",
			d.BorrowingID, truncate(d.BookTitle, 30), d.BookISBN,
			truncate(d.MemberName, 20), d.BorrowDate, d.DueDate,
			d.Status, d.FineAmount.StringFixed(2))
	}
}

// ---------------------------------------------------------------------------
// Output helpers
// ---------------------------------------------------------------------------

func listAndPrintBooks(list func() ([]*library.Book, error)) {
	books, err := list()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printBooks(books)
}

func printBooks(books []*library.Book) {
	if len(books) == 0 {
		fmt.Println("No books found.")
		return
	}
	fmt.Printf("%-5s %-15s %-35s %-25s %-15s %s\n", "ID", "ISBN", "Title", "Author", "Genre", "Copies")
	fmt.Println(strings.Repeat("-", 105))
	for _, b := range books {
		fmt.Printf("%-5d %-15s %-35s %-25s %-15s %d/%d\n",
			b.BookID, b.ISBN, truncate(b.Title, 35), truncate(b.Author, 25),
			truncate(b.Genre, 15), b.AvailableCopies, b.TotalCopies)
	}
}

func listAndPrintMembers(list func() ([]*library.Member, error)) {
	members, err := list()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printMembers(members)
}

func printMembers(members []*library.Member) {
	if len(members) == 0 {
		fmt.Println("No members found.")
		return
	}
	fmt.Printf("%-5s %-10s %-25s %-30s %-10s %s\n", "ID", "Code", "Name", "Email", "Status", "Max")
	fmt.Println(strings.Repeat("-", 90))
	for _, m := range members {
		fmt.Printf("%-5d %-10s %-25s %-30s %-10s %d\n",
			m.MemberID, m.MemberCode, truncate(m.FullName(), 25),
			truncate(m.Email, 30), m.Status, m.MaxBooksAllowed)
	}
}

func printBorrowings(borrowings []*library.Borrowing) {
	if len(borrowings) == 0 {
		fmt.Println("No borrowings found.")
		return
	}
	fmt.Printf("%-5s %-8s %-8s %-12s %-12s %-12s %-10s %s\n",
		"ID", "Book", "Member", "Borrowed", "Due", "Returned", "Status", "Fine")
	fmt.Println(strings.Repeat("-", 85))
	for _, b := range borrowings {
		returned := "-"
		if b.ReturnDate.Valid {
			returned = b.ReturnDate.Date.String()
		}
		fmt.Printf("%-5d %-8d %-8d %-12s %-12s %-12s %-10s $%s\n",
			b.BorrowingID, b.BookID, b.MemberID, b.BorrowDate, b.DueDate,
			returned, b.Status, b.FineAmount.StringFixed(2))
	}
}

func printStatistics(stats *library.Statistics) {
	fmt.Println("=== LIBRARY STATISTICS ===")
	fmt.Printf("Total Books: %d\n", stats.TotalBooks)
	fmt.Printf("Total Copies: %d\n", stats.TotalCopies)
	fmt.Printf("Available Copies: %d\n", stats.AvailableCopies)
	fmt.Printf("Borrowed Copies: %d\n", stats.BorrowedCopies)
	fmt.Printf("Total Members: %d\n", stats.TotalMembers)
	fmt.Printf("Active Members: %d\n", stats.ActiveMembers)
	fmt.Printf("Current Borrowings: %d\n", stats.CurrentBorrowings)
	fmt.Printf("Overdue Books: %d\n", stats.OverdueBorrowings)
}

// ---------------------------------------------------------------------------
// Input helpers
// ---------------------------------------------------------------------------

func promptLine(sc *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !sc.Scan() {
		return ""
	}
	return strings.TrimSpace(sc.Text())
}

func promptChoice(sc *bufio.Scanner) int {
	choice, err := strconv.Atoi(promptLine(sc, "> "))
	if err != nil {
		return 0
	}
	return choice
}

func promptID(sc *bufio.Scanner, label string) (int64, bool) {
	raw := promptLine(sc, label)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		fmt.Printf("Invalid ID: %s\n", raw)
		return 0, false
	}
	return id, true
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
