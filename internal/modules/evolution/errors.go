package evolution

import "errors"

var (
	// ErrConfiguration reports parameters that make the search impossible.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrDegenerateVolatility marks a wallet whose portfolio volatility is zero or not a
	// real number. Such wallets are excluded from ranking, never fatal.
	ErrDegenerateVolatility = errors.New("degenerate portfolio volatility")

	// ErrInsufficientPopulation is returned when selection has fewer scored wallets than
	// the strategy needs.
	ErrInsufficientPopulation = errors.New("insufficient population")

	// ErrIncompatibleParents is returned when crossover parents differ in size.
	ErrIncompatibleParents = errors.New("incompatible parents")

	// ErrCrossoverExhausted is returned when a child cannot be topped up to full size.
	ErrCrossoverExhausted = errors.New("crossover exhausted")

	// ErrWalletTooSmall is returned when inversion mutation gets fewer than two assets.
	ErrWalletTooSmall = errors.New("wallet too small")
)
