package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// OpenAddressBook opens one AddressBook-v22.abcddb file.
func OpenAddressBook(ctx context.Context, path string) (*DB, error) {
	return Open(ctx, path, "ZABCDRECORD")
}

// NameByPhoneSuffix returns the "first last" name of the first record with
// a phone number ending in digits.
func (db *DB) NameByPhoneSuffix(ctx context.Context, digits string) (string, bool, error) {
	return db.recordName(ctx, `
		SELECT COALESCE(ZABCDRECORD.ZFIRSTNAME, ''), COALESCE(ZABCDRECORD.ZLASTNAME, '')
		FROM ZABCDRECORD
		LEFT JOIN ZABCDPHONENUMBER ON ZABCDRECORD.Z_PK = ZABCDPHONENUMBER.ZOWNER
		WHERE ZABCDPHONENUMBER.ZFULLNUMBER LIKE '%' || ?
		LIMIT 1`, digits)
}

// NameByEmail returns the "first last" name of the record owning email.
func (db *DB) NameByEmail(ctx context.Context, email string) (string, bool, error) {
	return db.recordName(ctx, `
		SELECT COALESCE(ZABCDRECORD.ZFIRSTNAME, ''), COALESCE(ZABCDRECORD.ZLASTNAME, '')
		FROM ZABCDRECORD
		LEFT JOIN ZABCDEMAILADDRESS ON ZABCDRECORD.Z_PK = ZABCDEMAILADDRESS.ZOWNER
		WHERE ZABCDEMAILADDRESS.ZADDRESS = ?
		LIMIT 1`, email)
}

func (db *DB) recordName(ctx context.Context, q, arg string) (string, bool, error) {
	var first, last string
	err := db.QueryRowContext(ctx, q, arg).Scan(&first, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("address book %s: %w", db.path, err)
	}
	name := strings.TrimSpace(first + " " + last)
	return name, name != "", nil
}
