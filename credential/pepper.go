package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
)

const (
	PepperEnvVar = "RAMPUP_PEPPER"
	// PepperSuffix is appended to the name of a peppered digest.
	PepperSuffix = "+pepper"
)

type (
	// Pepper is a server side secret mixed into every digest. Unlike the
	// salt it is never stored next to the credential.
	Pepper [32]byte

	pepperedDigest struct {
		inner  Digest
		pepper Pepper
	}
)

func (p *Pepper) Zero() {
	for i := range p {
		p[i] = 0
	}
}

// PepperFromEnv decodes a base64 pepper from varname and clears the
// variable afterwards so child processes never see it.
func PepperFromEnv(varname string, getfn func(string) string, setfn func(string, string) error) (*Pepper, error) {
	if getfn == nil {
		getfn = os.Getenv
	}
	if setfn == nil {
		setfn = os.Setenv
	}
	val := getfn(varname)
	setfn(varname, "")
	var pepper Pepper
	buf, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		return nil, fmt.Errorf("credential: cannot decode %v to a valid pepper, cause %w", varname, err)
	} else if len(buf) != len(pepper) {
		return nil, fmt.Errorf("credential: pepper from %v has %v bytes, expecting %v", varname, len(buf), len(pepper))
	}
	copy(pepper[:], buf)
	for i := range buf {
		buf[i] = 0
	}
	return &pepper, nil
}

// Peppered wraps inner so its output is keyed with HMAC-SHA256(pepper, .).
// It returns nil when either argument is nil, which WithDigest rejects.
func Peppered(inner Digest, pepper *Pepper) Digest {
	if inner == nil || pepper == nil {
		return nil
	}
	return pepperedDigest{inner: inner, pepper: *pepper}
}

func (p pepperedDigest) Name() string { return p.inner.Name() + PepperSuffix }
func (p pepperedDigest) Size() int    { return sha256.Size }

func (p pepperedDigest) Sum(password, salt []byte) []byte {
	mac := hmac.New(sha256.New, p.pepper[:])
	mac.Write(p.inner.Sum(password, salt))
	return mac.Sum(nil)
}
