package service

import "errors"

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrWrongPassword        = errors.New("current password is incorrect")
	ErrSamePassword         = errors.New("new password must differ from the current password")
	ErrWeakPassword         = errors.New("password does not meet the policy")
	ErrTwoFactorNotSetup    = errors.New("2FA not set up")
	ErrTwoFactorEnabled     = errors.New("2FA is already enabled")
	ErrTwoFactorRequired    = errors.New("two-factor code required")
	ErrInvalidTwoFactorCode = errors.New("incorrect two-factor code")
)
