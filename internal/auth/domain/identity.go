package domain

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidFormat reports an identity that is neither a valid phone number
// nor a valid email address for its declared kind.
var ErrInvalidFormat = errors.New("domain: invalid identity format")

type IdentityKind string

const (
	KindPhone IdentityKind = "phone"
	KindEmail IdentityKind = "email"
)

// DefaultCountryCode is applied to national phone numbers ("0xxxxxxxxx").
const DefaultCountryCode = "84"

const maxEmailLength = 254

var (
	e164Pattern     = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	nationalPattern = regexp.MustCompile(`^0[0-9]{9}$`)
	emailPattern    = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	phoneStripper   = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
)

// Identity is a normalized phone number (E.164) or a lower-cased email
// address. Value is the unique key an account is stored under.
type Identity struct {
	Kind  IdentityKind
	Value string
}

func (id Identity) String() string { return id.Value }

// IsZero reports whether the identity has not been set.
func (id Identity) IsZero() bool { return id.Value == "" }

// ParseIdentity validates and normalizes raw input for the given kind.
// National phone numbers are rewritten with countryCode (defaulting to
// DefaultCountryCode), so "0901234567" becomes "+84901234567".
func ParseIdentity(kind IdentityKind, raw, countryCode string) (Identity, error) {
	switch kind {
	case KindPhone:
		return parsePhone(raw, countryCode)
	case KindEmail:
		return parseEmail(raw)
	default:
		return Identity{}, ErrInvalidFormat
	}
}

// MustParseIdentity panics on invalid input. Useful for tests and fixtures.
func MustParseIdentity(kind IdentityKind, raw string) Identity {
	id, err := ParseIdentity(kind, raw, DefaultCountryCode)
	if err != nil {
		panic(err)
	}
	return id
}

func parsePhone(raw, countryCode string) (Identity, error) {
	s := phoneStripper.Replace(strings.TrimSpace(raw))
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	if nationalPattern.MatchString(s) {
		s = "+" + countryCode + s[1:]
	}
	if !e164Pattern.MatchString(s) {
		return Identity{}, ErrInvalidFormat
	}

	return Identity{Kind: KindPhone, Value: s}, nil
}

func parseEmail(raw string) (Identity, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if len(s) > maxEmailLength || !emailPattern.MatchString(s) {
		return Identity{}, ErrInvalidFormat
	}
	if strings.Contains(s, "..") {
		return Identity{}, ErrInvalidFormat
	}

	return Identity{Kind: KindEmail, Value: s}, nil
}
