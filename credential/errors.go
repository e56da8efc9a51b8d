package credential

import "fmt"

type (
	// RandomSourceUnavailable is returned by Enroll when the salt cannot be
	// drawn from the configured random source. It is never retried and
	// never replaced by a weaker source.
	RandomSourceUnavailable struct {
		cause error
	}

	// MalformedStoredCredential means the stored salt or hash could not have
	// been produced by Enroll. It signals data corruption, not a failed login.
	MalformedStoredCredential struct {
		Field  string
		Reason string
	}

	InvalidOption struct {
		Option string
		Reason string
	}
)

func (r RandomSourceUnavailable) Error() string {
	return fmt.Sprintf("credential: random source unavailable, cause %v", r.cause)
}

func (r RandomSourceUnavailable) Unwrap() error {
	return r.cause
}

func (r RandomSourceUnavailable) Is(target error) bool {
	_, ok := target.(RandomSourceUnavailable)
	return ok
}

func (m MalformedStoredCredential) Error() string {
	return fmt.Sprintf("credential: malformed stored %v, %v", m.Field, m.Reason)
}

func (i InvalidOption) Error() string {
	return fmt.Sprintf("credential: invalid option %v, %v", i.Option, i.Reason)
}
