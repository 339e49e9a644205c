package evolution

// ProgressFunc receives the generation number and the best wallet known so far after each
// non-terminal generation. A nil ProgressFunc is ignored.
type ProgressFunc func(generation int, best Wallet)

func callProgress(fn ProgressFunc, generation int, best Wallet) {
	if fn != nil {
		fn(generation, best)
	}
}
