package game

import "slices"

// Member is one entry of a room's join order.
type Member struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// Room is the ephemeral membership roster. JoinOrder is the turn-rotation
// order for the whole game and is append-only.
type Room struct {
	ID          string
	MemberLimit int
	TotalRounds int
	JoinOrder   []Member
}

func NewRoom(id string, memberLimit, totalRounds int) *Room {
	return &Room{
		ID:          id,
		MemberLimit: memberLimit,
		TotalRounds: totalRounds,
	}
}

// AddMember appends the user unless it is already present. Capacity is the
// caller's responsibility.
func (r *Room) AddMember(userID, userName string) bool {
	if r.HasMember(userID) {
		return false
	}
	r.JoinOrder = append(r.JoinOrder, Member{UserID: userID, UserName: userName})
	return true
}

func (r *Room) HasMember(userID string) bool {
	return slices.ContainsFunc(r.JoinOrder, func(m Member) bool { return m.UserID == userID })
}

func (r *Room) EnteringCount() int {
	return len(r.JoinOrder)
}

func (r *Room) Full() bool {
	return r.EnteringCount() == r.MemberLimit
}

func (r *Room) MemberNames() []string {
	names := make([]string, 0, len(r.JoinOrder))
	for _, member := range r.JoinOrder {
		names = append(names, member.UserName)
	}
	return names
}

func (r *Room) NameTaken(name string) bool {
	return slices.ContainsFunc(r.JoinOrder, func(m Member) bool { return m.UserName == name })
}

// Creator is the first member to join, or false for an empty room.
func (r *Room) Creator() (Member, bool) {
	if len(r.JoinOrder) == 0 {
		return Member{}, false
	}
	return r.JoinOrder[0], true
}

func (r *Room) MemberByName(name string) (Member, bool) {
	for _, member := range r.JoinOrder {
		if member.UserName == name {
			return member, true
		}
	}
	return Member{}, false
}

func (r *Room) Member(userID string) (Member, bool) {
	for _, member := range r.JoinOrder {
		if member.UserID == userID {
			return member, true
		}
	}
	return Member{}, false
}

// IndexOf returns the rotation position of the named member, or -1.
func (r *Room) IndexOf(name string) int {
	return slices.IndexFunc(r.JoinOrder, func(m Member) bool { return m.UserName == name })
}
