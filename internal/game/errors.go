package game

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the manager wraps exactly one of these.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidPhase  = errors.New("invalid phase")
	ErrValidation    = errors.New("validation failed")
	ErrDataIntegrity = errors.New("data integrity")
)

var (
	ErrRoomNotFound        = fmt.Errorf("%w: room", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("%w: user", ErrNotFound)
	ErrGameNotFound        = fmt.Errorf("%w: game", ErrNotFound)
	ErrBookNotFound        = fmt.Errorf("%w: sketchbook", ErrNotFound)
	ErrPromptNotFound      = fmt.Errorf("%w: prompt", ErrNotFound)
	ErrRoomFull            = fmt.Errorf("%w: room full", ErrConflict)
	ErrRoomNotFull         = fmt.Errorf("%w: room not full", ErrInvalidPhase)
	ErrNameTaken           = fmt.Errorf("%w: name already taken", ErrConflict)
	ErrAlreadyRolled       = fmt.Errorf("%w: dice already rolled", ErrConflict)
	ErrDuplicatePage       = fmt.Errorf("%w: page already submitted for this turn", ErrConflict)
	ErrNotHolder           = fmt.Errorf("%w: sketchbook held by another player", ErrConflict)
	ErrGameStarted         = fmt.Errorf("%w: game already started", ErrConflict)
	ErrFreeInputNotOwed    = fmt.Errorf("%w: no free prompt owed by this player", ErrConflict)
	ErrNotInSelectionPhase = fmt.Errorf("%w: not in prompt selection", ErrInvalidPhase)
	ErrDiceNotRolled       = fmt.Errorf("%w: dice not rolled yet", ErrInvalidPhase)
	ErrNoFreeInputPending  = fmt.Errorf("%w: no free prompt pending", ErrInvalidPhase)
	ErrGameNotFinished     = fmt.Errorf("%w: game not finished", ErrInvalidPhase)
	ErrNotEnoughCards      = fmt.Errorf("%w: not enough prompt cards", ErrDataIntegrity)
)

// Kind reports which error kind err belongs to, or nil for unclassified errors.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrInvalidPhase, ErrValidation, ErrDataIntegrity} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func integrityError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDataIntegrity, fmt.Sprintf(format, args...))
}
