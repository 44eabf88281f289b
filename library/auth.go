package library

import (
	"database/sql"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const librarianHashKey = "librarian_password_hash"

// HasLibrarianPassword reports whether a librarian password has been set.
func (d *Database) HasLibrarianPassword() (bool, error) {
	_, err := d.getMeta(librarianHashKey)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetLibrarianPassword hashes and stores the password guarding destructive
// operations.
func (d *Database) SetLibrarianPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return storageErr("hash password", err)
	}
	return d.setMeta(librarianHashKey, string(hash))
}

// VerifyLibrarianPassword checks the password against the stored hash.
func (d *Database) VerifyLibrarianPassword(password string) error {
	hash, err := d.getMeta(librarianHashKey)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (d *Database) getMeta(key string) (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM meta WHERE key=?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	if err != nil {
		return "", storageErr("get meta", err)
	}
	return value, nil
}

func (d *Database) setMeta(key, value string) error {
	_, err := d.db.Exec(`INSERT INTO meta(key,value) VALUES(?,?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, key, value)
	if err != nil {
		return storageErr("set meta", err)
	}
	return nil
}
