package rooms

import "errors"

var (
	// ErrNotFound is returned when no room matches the lookup.
	ErrNotFound = errors.New("room not found")
	// ErrNameTaken is returned when a room with the same name exists.
	ErrNameTaken = errors.New("room name already taken")
	// ErrAlreadyParticipant is returned when the user is already in the room.
	ErrAlreadyParticipant = errors.New("user is already a participant")
	// ErrNotParticipant is returned when the user is not in the room.
	ErrNotParticipant = errors.New("user is not a participant")
)

// CreateRoomRequest holds the data needed to create a room.
type CreateRoomRequest struct {
	Name string
}
