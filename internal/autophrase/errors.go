package autophrase

import apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"

// Errors callers of this package match with errors.Is.
var (
	ErrConfiguration = apperrors.ErrConfiguration
	ErrUnknownParser = apperrors.ErrUnknownParser
	ErrNotReady      = apperrors.ErrNotReady
)
