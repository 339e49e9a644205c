// Package evolution searches for a high Sharpe ratio crypto wallet with a genetic
// algorithm.
//
// A Wallet is one candidate allocation: a fixed number of distinct assets, each paired
// with a strictly positive weight, the weights summing to one. Every generation the
// Engine scores the population against historical return statistics, stops when a wallet
// beats the target Sharpe ratio or the generation budget runs out, and otherwise breeds
// the next population from selected parents.
//
// Operators never modify their inputs. Crossover and mutation return fresh Wallet values
// with the fitness cleared, so parents carried into the next generation are never aliased.
package evolution
