// Package voting holds the vote state machine for public notes. A voter is
// in one of three states per note: no vote, upvoted, or downvoted. Repeating
// the current vote toggles it off; requesting the other type switches it.
package voting

type Type string

const (
	Upvote   Type = "upvote"
	Downvote Type = "downvote"
)

// None is the absence of a vote.
const None Type = ""

func ValidType(value string) bool {
	return Type(value) == Upvote || Type(value) == Downvote
}

type Op int

const (
	// OpInsert creates a new vote row.
	OpInsert Op = iota
	// OpRemove deletes the existing vote row.
	OpRemove
	// OpSwitch flips the existing vote row to the other type.
	OpSwitch
)

// Transition is the row operation plus the counter deltas that must be
// applied together in one transaction.
type Transition struct {
	Op            Op
	UpvoteDelta   int
	DownvoteDelta int
	// Result is the voter's state after the transition, None when cleared.
	Result Type
}

// Apply computes the transition for a requested vote given the voter's
// current state. current must be None, Upvote, or Downvote.
func Apply(current, requested Type) Transition {
	if current == None {
		return Transition{
			Op:            OpInsert,
			UpvoteDelta:   delta(requested, Upvote),
			DownvoteDelta: delta(requested, Downvote),
			Result:        requested,
		}
	}
	if current == requested {
		return Transition{
			Op:            OpRemove,
			UpvoteDelta:   -delta(current, Upvote),
			DownvoteDelta: -delta(current, Downvote),
			Result:        None,
		}
	}
	return Transition{
		Op:            OpSwitch,
		UpvoteDelta:   delta(requested, Upvote) - delta(current, Upvote),
		DownvoteDelta: delta(requested, Downvote) - delta(current, Downvote),
		Result:        requested,
	}
}

func delta(value, match Type) int {
	if value == match {
		return 1
	}
	return 0
}
