package game

// User is the per-session identity of a player in one room.
type User struct {
	ID                  string
	RoomID              string
	Name                string
	AssignedCardNum     *int
	OwnedSketchBookID   *uint
	CurrentSketchBookID *uint
}

func (u *User) HoldingOwnBook() bool {
	return u.OwnedSketchBookID != nil && u.CurrentSketchBookID != nil &&
		*u.OwnedSketchBookID == *u.CurrentSketchBookID
}

// ClearGame drops every pointer into a finished game.
func (u *User) ClearGame() {
	u.AssignedCardNum = nil
	u.OwnedSketchBookID = nil
	u.CurrentSketchBookID = nil
}

func ptr[T any](v T) *T {
	return &v
}
