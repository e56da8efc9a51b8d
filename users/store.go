// Package users persists user records and the credentials that
// authenticate them.
//
// Salt and hash are written together on every enrollment and never leave
// this package, callers only see User values and boolean login results.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andrebq/rampup/credential"
	"github.com/andrebq/rampup/users/migrations"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type (
	Store struct {
		db      *sql.DB
		current *credential.Hasher
		hashers map[string]*credential.Hasher
		dummy   credential.Credential
		now     func() time.Time
		log     zerolog.Logger
	}

	Option func(*Store)

	User struct {
		ID        int64     `json:"-"`
		UID       string    `json:"uid"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	SignUp struct {
		Name                 string
		Email                string
		Password             string
		PasswordConfirmation string
	}

	storedCredential struct {
		digest string
		salt   string
		hash   string
	}
)

const userColumns = `user_id, uid, name, email, created_at, updated_at`

type gooseLogger struct {
	log zerolog.Logger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.log.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.log.Fatal().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// gooseUp is replaced in tests that need migrations to fail.
var gooseUp = func(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(gooseLogger{log: log})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// WithVerifier registers an extra hasher used to verify records whose
// digest is h.Digest().Name(). Records are upgraded to the current hasher
// after a successful login.
func WithVerifier(h *credential.Hasher) Option {
	return func(s *Store) {
		s.hashers[h.Digest().Name()] = h
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func openDatabase(ctx context.Context, dbpath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbpath); dir != "" {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return nil, fmt.Errorf("unable to create directory %v to store users, cause %w", dir, err)
		}
	}
	connstr := fmt.Sprintf("file:%v?_journal=wal&_busy_timeout=5000&_foreign_keys=on&mode=rwc", dbpath)
	conn, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %w", dbpath, err)
	}
	err = conn.PingContext(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to ping database %v, cause %w", dbpath, err)
	}
	return conn, nil
}

// Open loads (or creates) the user database at dbpath and applies any
// pending migration. New credentials are enrolled with hasher, records
// created by the legacy application are verified with plain SHA256.
func Open(ctx context.Context, dbpath string, hasher *credential.Hasher, opts ...Option) (*Store, error) {
	legacy, err := credential.New(credential.WithSaltLength(credential.MinSaltLength))
	if err != nil {
		return nil, err
	}
	s := &Store{
		current: hasher,
		hashers: map[string]*credential.Hasher{
			legacy.Digest().Name(): legacy,
		},
		now: time.Now,
		log: log.Logger,
	}
	for _, o := range opts {
		o(s)
	}
	s.hashers[hasher.Digest().Name()] = hasher
	s.log = s.log.With().Str("component", "users").Logger()

	// compared against when the email is unknown, so that path costs the
	// same as a wrong password
	s.dummy, err = hasher.Enroll("")
	if err != nil {
		return nil, err
	}

	s.db, err = openDatabase(ctx, dbpath)
	if err != nil {
		return nil, err
	}
	if err := gooseUp(ctx, s.db, s.log); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("unable to migrate %v, cause %w", dbpath, err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create validates the signup form and persists a new user with a freshly
// enrolled credential.
func (s *Store) Create(ctx context.Context, form SignUp) (User, error) {
	form.Name = strings.TrimSpace(form.Name)
	email := normalizeEmail(form.Email)
	for _, f := range []struct{ name, value string }{
		{"name", form.Name},
		{"email", email},
		{"password", form.Password},
		{"password_confirmation", form.PasswordConfirmation},
	} {
		if f.value == "" {
			return User{}, MissingField{Field: f.name}
		}
	}
	if form.Password != form.PasswordConfirmation {
		return User{}, PasswordMismatch{}
	}
	cred, err := s.current.Enroll(form.Password)
	if err != nil {
		return User{}, err
	}
	now := s.now().UTC()
	u := User{
		UID:       uuid.NewString(),
		Name:      form.Name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.insert(ctx, s.db, &u, storedCredential{digest: cred.Digest(), salt: cred.Salt(), hash: cred.Hash()})
	if err != nil {
		return User{}, err
	}
	s.log.Info().Str("uid", u.UID).Msg("User created")
	return u, nil
}

type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Store) insert(ctx context.Context, db execer, u *User, cred storedCredential) error {
	err := db.QueryRowContext(ctx, `insert into users(uid, name, email, email_hash64, digest, salt, hashed_password, created_at, updated_at)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?) returning user_id`,
		u.UID, u.Name, u.Email, emailHash(u.Email), cred.digest, cred.salt, cred.hash, u.CreatedAt, u.UpdatedAt).Scan(&u.ID)
	if isUniqueViolation(err) {
		return EmailTaken{Email: u.Email}
	} else if err != nil {
		return fmt.Errorf("unable to store user %v, cause %w", u.Email, err)
	}
	return nil
}

// Authenticate returns the user identified by email when password
// matches. Unknown emails and wrong passwords are indistinguishable to
// the caller, only storage failures are returned as errors.
func (s *Store) Authenticate(ctx context.Context, email, password string) (User, bool, error) {
	email = normalizeEmail(email)
	u, cred, err := s.lookupByEmail(ctx, email)
	if errors.As(err, &NotFound{}) {
		s.current.Verify(password, s.dummy.Salt(), s.dummy.Hash())
		return User{}, false, nil
	} else if err != nil {
		return User{}, false, err
	}
	hasher, found := s.hashers[cred.digest]
	if !found {
		s.log.Error().Str("uid", u.UID).Str("stored_digest", cred.digest).Msg("No verifier registered for stored digest")
		return User{}, false, nil
	}
	ok, err := hasher.Check(password, cred.salt, cred.hash)
	if err != nil {
		s.log.Error().Err(err).Str("uid", u.UID).Msg("Stored credential is corrupted")
		return User{}, false, nil
	} else if !ok {
		return User{}, false, nil
	}
	if hasher != s.current || s.current.NeedsRehash(cred.salt, cred.hash) {
		s.rehash(ctx, u, password)
	}
	return u, true, nil
}

func (s *Store) rehash(ctx context.Context, u User, password string) {
	err := s.replaceCredential(ctx, u.UID, password)
	if err != nil {
		s.log.Warn().Err(err).Str("uid", u.UID).Msg("Unable to upgrade stored credential, keeping the old one")
		return
	}
	s.log.Info().Str("uid", u.UID).Str("digest", s.current.Digest().Name()).Msg("Stored credential upgraded")
}

// ChangePassword replaces salt and hash of the given user.
func (s *Store) ChangePassword(ctx context.Context, uid, password, confirmation string) error {
	switch {
	case password == "":
		return MissingField{Field: "password"}
	case confirmation == "":
		return MissingField{Field: "password_confirmation"}
	case password != confirmation:
		return PasswordMismatch{}
	}
	return s.replaceCredential(ctx, uid, password)
}

func (s *Store) replaceCredential(ctx context.Context, uid, password string) error {
	cred, err := s.current.Enroll(password)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `update users set digest = ?, salt = ?, hashed_password = ?, updated_at = ? where uid = ?`,
		cred.Digest(), cred.Salt(), cred.Hash(), s.now().UTC(), uid)
	if err != nil {
		return fmt.Errorf("unable to update credential of user %v, cause %w", uid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to update credential of user %v, cause %w", uid, err)
	} else if n == 0 {
		return NotFound{UID: uid}
	}
	return nil
}

func (s *Store) FindByUID(ctx context.Context, uid string) (User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where uid = ?`, uid)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, NotFound{UID: uid}
	} else if err != nil {
		return User{}, fmt.Errorf("unable to load user %v, cause %w", uid, err)
	}
	return u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (User, error) {
	u, _, err := s.lookupByEmail(ctx, normalizeEmail(email))
	return u, err
}

func (s *Store) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users order by user_id asc`)
	if err != nil {
		return nil, fmt.Errorf("unable to list users, cause %w", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan user, cause %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) lookupByEmail(ctx context.Context, email string) (User, storedCredential, error) {
	var u User
	var cred storedCredential
	err := s.db.QueryRowContext(ctx, `select `+userColumns+`, digest, salt, hashed_password from users
		where email_hash64 = ? and email = ?`, emailHash(email), email).
		Scan(&u.ID, &u.UID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt, &cred.digest, &cred.salt, &cred.hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, storedCredential{}, NotFound{UID: email}
	} else if err != nil {
		return User{}, storedCredential{}, fmt.Errorf("unable to lookup user by email, cause %w", err)
	}
	return u, cred, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.UID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailHash(email string) int64 {
	return int64(xxhash.Sum64String(email))
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}
