package matching

import "spark-backend/internal/models"

// PairState describes where two users are in the like/match/chat lifecycle.
// Matched states are terminal with respect to re-matching; the only way back
// to NoInteraction is deleting one of the accounts.
//
// MutualLike is the gap between both likes being in the ledger and the match
// being written: a failed create, or a reconcile still in flight. The next
// like back or reconcile on the pair closes it.
type PairState int

const (
	NoInteraction PairState = iota
	OneSidedLike
	MutualLike
	Matched
	Conversing
	Unseen
)

func (s PairState) String() string {
	switch s {
	case OneSidedLike:
		return "one_sided_like"
	case MutualLike:
		return "mutual_like"
	case Matched:
		return "matched"
	case Conversing:
		return "conversing"
	case Unseen:
		return "unseen"
	default:
		return "no_interaction"
	}
}

// StateOf computes the pair state from the point of view of viewer.
// swipes may contain any ledger entries; only likes between a and b count.
func StateOf(swipes []*models.Swipe, matchesOfA []*models.Match, a, b, viewer string) PairState {
	if m := FindExisting(matchesOfA, a, b); m != nil {
		switch {
		case m.LastMessageSenderID == nil:
			return Matched
		case IsUnread(m, viewer):
			return Unseen
		default:
			return Conversing
		}
	}
	aLikedB, bLikedA := HasReciprocalLike(swipes, b, a), HasReciprocalLike(swipes, a, b)
	switch {
	case aLikedB && bLikedA:
		return MutualLike
	case aLikedB || bLikedA:
		return OneSidedLike
	}
	return NoInteraction
}
