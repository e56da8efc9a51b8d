package users

import "context"

func StoredCredential(ctx context.Context, s *Store, email string) (digest, salt, hash string, err error) {
	_, cred, err := s.lookupByEmail(ctx, normalizeEmail(email))
	return cred.digest, cred.salt, cred.hash, err
}

func CorruptHash(ctx context.Context, s *Store, email, hash string) error {
	_, err := s.db.ExecContext(ctx, `update users set hashed_password = ? where email = ?`, hash, normalizeEmail(email))
	return err
}
