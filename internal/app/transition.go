package app

import "github.com/gokkuu100/konserve-cp-sub003/internal/domain"

// TargetStatus maps a normalized event kind to the transaction status it drives
// toward. Pending events drive nothing.
func TargetStatus(kind domain.EventKind) (string, bool) {
	switch kind {
	case domain.EventSuccess:
		return domain.TransactionSuccessful, true
	case domain.EventFailure:
		return domain.TransactionFailed, true
	default:
		return "", false
	}
}

// CanTransition is the transaction state machine as an explicit table:
// pending may move to either terminal status; terminal states absorb everything.
func CanTransition(current, target string) bool {
	if current != domain.TransactionPending {
		return false
	}
	return target == domain.TransactionSuccessful || target == domain.TransactionFailed
}
