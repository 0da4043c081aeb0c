package game

import (
	"errors"
	"fmt"
)

// ErrNoGame means an operation arrived before StartGame.
var ErrNoGame = errors.New("no game in progress")

// ErrDegenerateQuestion means the model judged every candidate the same
// way, so the question carries no information. Retried internally, never
// surfaced to the player unless retries run out.
var ErrDegenerateQuestion = errors.New("question does not discriminate between candidates")

// MissingAssetError means a character lacked image data at game start. The
// game does not start.
type MissingAssetError struct {
	Name string
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("character %q has no image data", e.Name)
}

// InvalidStateError reports an operation issued in the wrong machine state.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s is not valid in state %s", e.Op, e.State)
}
