package market

import "errors"

var (
	ErrInvalidSymbol       = errors.New("invalid symbol")
	ErrUnsupportedInterval = errors.New("unsupported interval")
	ErrRangeOutOfBounds    = errors.New("requested range outside available data")
	ErrIndexMismatch       = errors.New("series and indicator indices differ")
	ErrUnknownColumn       = errors.New("unknown column")
)
