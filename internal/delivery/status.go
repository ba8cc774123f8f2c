package delivery

import (
	"fmt"
	"slices"
)

// Status represents the delivery state of a single outgoing or incoming
// message. Confirmed statuses only ever move forward: a message that was
// seen never goes back to delivered, no matter what order events arrive in.
type Status string

const (
	Sending   Status = "sending"
	Sent      Status = "sent"
	Delivered Status = "delivered"
	Seen      Status = "seen"
	Failed    Status = "failed"
)

// chain is the monotonic confirmation order. Failed sits outside of it:
// it is reachable only from Sending and leads only back to Sending.
var chain = []Status{Sending, Sent, Delivered, Seen}

// validTransitions defines allowed single-step transitions.
var validTransitions = map[Status][]Status{
	Sending:   {Sent, Delivered, Failed},
	Sent:      {Delivered, Seen},
	Delivered: {Seen},
	Seen:      {},
	Failed:    {Sending},
}

// Rank returns the position of s in the confirmation chain, or -1 for
// statuses outside it (Failed, unknown).
func Rank(s Status) int {
	return slices.Index(chain, s)
}

// Known reports whether s is a status chirp understands.
func Known(s Status) bool {
	return Rank(s) >= 0 || s == Failed
}

// CanTransition reports whether a single step from one status to another
// is allowed.
func CanTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Path returns the statuses to apply, in order, to bring a message at cur
// up to target. A seen event on a message still at sent yields
// [delivered, seen]: the delivered step is applied even though it was
// never observed separately. Regressions and repeats yield an empty path,
// not an error, so out-of-order events reconcile silently.
//
// Failed is special-cased: the only path out of it is a retry back to
// Sending, and the only path into it is from Sending. Anything else is a
// conflict the caller should log and drop.
func Path(cur, target Status) ([]Status, error) {
	if !Known(cur) {
		return nil, fmt.Errorf("unknown status %q", cur)
	}
	if !Known(target) {
		return nil, fmt.Errorf("unknown status %q", target)
	}

	switch {
	case target == Failed:
		if cur != Sending {
			return nil, fmt.Errorf("cannot fail message in status %q", cur)
		}
		return []Status{Failed}, nil
	case cur == Failed:
		if target != Sending {
			return nil, fmt.Errorf("message is failed; only a retry can advance it")
		}
		return []Status{Sending}, nil
	case target == Sending:
		// Already in the chain; sending is never re-entered except via retry.
		return nil, nil
	}

	from, to := Rank(cur), Rank(target)
	if to <= from {
		return nil, nil
	}
	return chain[from+1 : to+1], nil
}

// Change is the bus payload published when one message's status moves.
type Change struct {
	ChatID string
	MsgID  string
	From   Status
	To     Status
}

// Editable reports whether a message in this status may be marked edited.
// Only content that reached the server can be edited.
func Editable(s Status) bool {
	return Rank(s) >= Rank(Sent)
}
