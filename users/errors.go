package users

import "fmt"

type (
	MissingField struct {
		Field string
	}

	PasswordMismatch struct{}

	EmailTaken struct {
		Email string
	}

	NotFound struct {
		UID string
	}

	ImportFailed struct {
		Line  int
		cause error
	}
)

func (m MissingField) Error() string {
	return fmt.Sprintf("%v can't be blank", m.Field)
}

func (PasswordMismatch) Error() string {
	return "password doesn't match confirmation"
}

func (e EmailTaken) Error() string {
	return fmt.Sprintf("email %v has already been taken", e.Email)
}

func (n NotFound) Error() string {
	return fmt.Sprintf("user %v not found", n.UID)
}

func (i ImportFailed) Error() string {
	return fmt.Sprintf("unable to import line %v, cause %v", i.Line, i.cause)
}

func (i ImportFailed) Unwrap() error {
	return i.cause
}
