// Package model holds the Command Model: the normalized identity of every
// user command and the read/write sets discovered for it.
//
// Commands are created once, at ingestion, in program order. Their sets are
// replaced wholesale at the end of every round from a per-round staging
// arena (Round), so a partially parsed trace is never visible to the
// dependency analyzer.
//
// The model is not safe for concurrent use. The scheduler only touches it
// between rounds from its single loop goroutine.
package model
