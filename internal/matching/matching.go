// Package matching holds the decision rules of the swipe/match workflow.
//
// Everything here is pure: callers pass in ledger and match snapshots and get
// back the action to perform. The effectful side lives in services.
package matching

import (
	"sort"
	"strings"
	"time"

	"spark-backend/internal/models"

	"github.com/google/uuid"
)

// ChatPlaceholder is shown for matches that have no messages yet
const ChatPlaceholder = "Start chatting"

// matchNamespace seeds deterministic match ids
var matchNamespace = uuid.MustParse("6f1f6c3e-3f0b-4f43-9a53-3f8a1c1d2b7e")

// SortedPair returns the two ids in ascending order
func SortedPair(a, b string) []string {
	if a > b {
		a, b = b, a
	}
	return []string{a, b}
}

// PairID derives a stable match id from the unordered pair
func PairID(a, b string) string {
	p := SortedPair(a, b)
	return uuid.NewSHA1(matchNamespace, []byte(p[0]+":"+p[1])).String()
}

// HasReciprocalLike reports whether any swipe is a like from target to swiper
func HasReciprocalLike(swipes []*models.Swipe, swiperID, targetID string) bool {
	for _, s := range swipes {
		if s.SwiperID == targetID && s.TargetID == swiperID && s.Type == models.SwipeLike {
			return true
		}
	}
	return false
}

// FindExisting scans the matches of a for one that also contains b.
// With duplicates present the first one in the slice wins.
func FindExisting(matchesOfA []*models.Match, a, b string) *models.Match {
	for _, m := range matchesOfA {
		if m.Has(a) && m.Has(b) {
			return m
		}
	}
	return nil
}

// NewMatch builds a fresh match record for the pair
func NewMatch(id, a, b string, now time.Time) *models.Match {
	return &models.Match{
		ID:        id,
		Users:     SortedPair(a, b),
		SeenBy:    []string{},
		CreatedAt: now,
	}
}

// Action is what reconciliation decided to do for a like
type Action int

const (
	// ActionNone means no reciprocal like exists yet
	ActionNone Action = iota
	// ActionReuse means a match already exists for the pair
	ActionReuse
	// ActionCreate means a new match must be written
	ActionCreate
)

func (a Action) String() string {
	switch a {
	case ActionReuse:
		return "reuse"
	case ActionCreate:
		return "create"
	default:
		return "none"
	}
}

// Decision is the outcome of Reconcile
type Decision struct {
	Action Action
	Match  *models.Match
}

// Reconcile decides what a like from a on b should produce given whether b
// already liked a and the current matches containing a.
func Reconcile(reciprocal bool, matchesOfA []*models.Match, a, b string) Decision {
	if !reciprocal {
		return Decision{Action: ActionNone}
	}
	return Pair(matchesOfA, a, b)
}

// Pair decides between reusing an existing match and creating one
func Pair(matchesOfA []*models.Match, a, b string) Decision {
	if m := FindExisting(matchesOfA, a, b); m != nil {
		return Decision{Action: ActionReuse, Match: m}
	}
	return Decision{Action: ActionCreate}
}

// MatchedPartners returns the set of users already matched with userID
func MatchedPartners(matches []*models.Match, userID string) map[string]struct{} {
	out := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if p, ok := m.Partner(userID); ok {
			out[p] = struct{}{}
		}
	}
	return out
}

// PendingLikers returns the swipers who liked userID and are not matched
// with them yet. First-like order is kept and repeated likes collapse.
func PendingLikers(likes []*models.Swipe, matches []*models.Match, userID string) []string {
	matched := MatchedPartners(matches, userID)
	seen := make(map[string]struct{}, len(likes))

	var out []string
	for _, s := range likes {
		if s.TargetID != userID || s.Type != models.SwipeLike || s.SwiperID == userID {
			continue
		}
		if _, ok := matched[s.SwiperID]; ok {
			continue
		}
		if _, ok := seen[s.SwiperID]; ok {
			continue
		}
		seen[s.SwiperID] = struct{}{}
		out = append(out, s.SwiperID)
	}
	return out
}

// Chunk splits ids into groups of at most size elements
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

// Candidates filters the directory down to profiles userID has not seen:
// not themselves, not swiped before, not already matched.
func Candidates(pool []*models.User, userID string, swipedTargets []string, matches []*models.Match) []*models.User {
	excluded := MatchedPartners(matches, userID)
	for _, id := range swipedTargets {
		excluded[id] = struct{}{}
	}

	out := make([]*models.User, 0, len(pool))
	for _, u := range pool {
		if u.ID == userID {
			continue
		}
		if _, ok := excluded[u.ID]; ok {
			continue
		}
		out = append(out, u)
	}
	return out
}

// IsUnread reports whether userID has a message from the partner they have not seen
func IsUnread(m *models.Match, userID string) bool {
	if m.LastMessageSenderID == nil || *m.LastMessageSenderID == "" || *m.LastMessageSenderID == userID {
		return false
	}
	for _, id := range m.SeenBy {
		if id == userID {
			return false
		}
	}
	return true
}

// Preview returns the chat-list line for a match
func Preview(m *models.Match) string {
	if m.LastMessage == nil || strings.TrimSpace(*m.LastMessage) == "" {
		return ChatPlaceholder
	}
	return *m.LastMessage
}

// lastActivity is the sort key of a match; no messages sorts as the epoch
func lastActivity(m *models.Match) int64 {
	if m.LastMessageTimestamp == nil {
		return 0
	}
	return m.LastMessageTimestamp.UnixNano()
}

// Dedupe keeps one match per partner, preferring the most recent activity
func Dedupe(matches []*models.Match, userID string) []*models.Match {
	byPartner := make(map[string]*models.Match, len(matches))
	order := make([]string, 0, len(matches))

	for _, m := range matches {
		p, ok := m.Partner(userID)
		if !ok {
			continue
		}
		existing, found := byPartner[p]
		if !found {
			byPartner[p] = m
			order = append(order, p)
			continue
		}
		if lastActivity(m) > lastActivity(existing) {
			byPartner[p] = m
		}
	}

	out := make([]*models.Match, 0, len(order))
	for _, p := range order {
		out = append(out, byPartner[p])
	}
	return out
}

// SortByActivity orders matches newest message first, then by id
func SortByActivity(matches []*models.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		ti, tj := lastActivity(matches[i]), lastActivity(matches[j])
		if ti != tj {
			return ti > tj
		}
		return matches[i].ID < matches[j].ID
	})
}

// ChatList builds the chat list for userID from their matches and the
// partner profiles. Matches whose partner profile is missing are dropped.
func ChatList(matches []*models.Match, partners map[string]*models.User, userID string) []*models.MatchWithUser {
	unique := Dedupe(matches, userID)
	SortByActivity(unique)

	out := make([]*models.MatchWithUser, 0, len(unique))
	for _, m := range unique {
		p, _ := m.Partner(userID)
		u, ok := partners[p]
		if !ok || u == nil {
			continue
		}
		out = append(out, &models.MatchWithUser{
			Match:   m,
			User:    u,
			Unread:  IsUnread(m, userID),
			Preview: Preview(m),
		})
	}
	return out
}

// UnreadCount counts the matches userID has not caught up on
func UnreadCount(matches []*models.Match, userID string) int {
	n := 0
	for _, m := range Dedupe(matches, userID) {
		if IsUnread(m, userID) {
			n++
		}
	}
	return n
}

// ApplyMessage returns the match summary after senderID sent text at ts.
// seen_by collapses to the sender alone so the partner sees it as unread.
func ApplyMessage(m *models.Match, senderID, text string, ts time.Time) *models.Match {
	out := *m
	out.LastMessage = &text
	out.LastMessageTimestamp = &ts
	out.LastMessageSenderID = &senderID
	out.SeenBy = []string{senderID}
	return &out
}

// ApplySeen returns the match with userID added to seen_by, keeping existing members
func ApplySeen(m *models.Match, userID string) *models.Match {
	out := *m
	out.SeenBy = append([]string(nil), m.SeenBy...)
	for _, id := range out.SeenBy {
		if id == userID {
			return &out
		}
	}
	out.SeenBy = append(out.SeenBy, userID)
	return &out
}

// NormalizeMessage trims text and reports whether anything is left to send
func NormalizeMessage(text string) (string, bool) {
	t := strings.TrimSpace(text)
	return t, t != ""
}
