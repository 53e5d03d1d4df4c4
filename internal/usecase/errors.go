package usecase

import "errors"

var (
	ErrSizeTooLarge     = errors.New("requested size exceeds maximum")
	ErrSizeTooSmall     = errors.New("requested size below minimum")
	ErrDurationTooLong  = errors.New("requested duration exceeds maximum")
	ErrDurationTooShort = errors.New("requested duration below minimum")
)
