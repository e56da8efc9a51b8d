package users

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andrebq/rampup/credential"
	"github.com/google/uuid"
)

var legacyHeader = []string{"name", "email", "salt", "hashed_password"}

// ImportLegacy copies users exported from the legacy application. The
// input is a CSV with the columns name, email, salt and hashed_password
// (in that order, header included). Stored pairs are kept untouched and
// are upgraded to the current digest the first time each user logs in.
//
// Either every row is imported or none is.
func (s *Store) ImportLegacy(ctx context.Context, input io.Reader) (int, error) {
	legacy := s.hashers[credential.DigestSHA256]
	rd := csv.NewReader(input)
	rd.FieldsPerRecord = len(legacyHeader)
	rd.TrimLeadingSpace = true

	header, err := rd.Read()
	if err != nil {
		return 0, ImportFailed{Line: 1, cause: err}
	}
	for i, col := range legacyHeader {
		if strings.ToLower(strings.TrimSpace(header[i])) != col {
			return 0, ImportFailed{Line: 1, cause: fmt.Errorf("expecting column %v got %v", col, header[i])}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("unable to start import transaction, cause %w", err)
	}
	defer tx.Rollback()

	var count int
	for {
		row, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return 0, ImportFailed{Line: parseErr.Line, cause: err}
			}
			return 0, ImportFailed{cause: err}
		}
		line, _ := rd.FieldPos(0)
		name, email := strings.TrimSpace(row[0]), normalizeEmail(row[1])
		cred := storedCredential{digest: credential.DigestSHA256, salt: row[2], hash: strings.ToLower(row[3])}
		switch {
		case name == "":
			return 0, ImportFailed{Line: line, cause: MissingField{Field: "name"}}
		case email == "":
			return 0, ImportFailed{Line: line, cause: MissingField{Field: "email"}}
		}
		if _, err := legacy.Check("", cred.salt, cred.hash); err != nil {
			return 0, ImportFailed{Line: line, cause: err}
		}
		now := s.now().UTC()
		u := User{UID: uuid.NewString(), Name: name, Email: email, CreatedAt: now, UpdatedAt: now}
		if err := s.insert(ctx, tx, &u, cred); err != nil {
			return 0, ImportFailed{Line: line, cause: err}
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("unable to commit import, cause %w", err)
	}
	s.log.Info().Int("users", count).Msg("Legacy users imported")
	return count, nil
}
