package domain

import "time"

// PendingOtp is the single outstanding code for an identity. Only a keyed
// fingerprint of the code is kept.
type PendingOtp struct {
	Identity  Identity
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int // failed verifications since the code was issued
	CreatedAt time.Time
}

// ExpiredAt reports whether the code is no longer usable at now. A code is
// still usable at exactly ExpiresAt.
func (p PendingOtp) ExpiredAt(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

type OtpPurpose string

const (
	PurposeRegistration  OtpPurpose = "registration"
	PurposePasswordReset OtpPurpose = "password_reset"
	PurposeVerification  OtpPurpose = "verification"
)
