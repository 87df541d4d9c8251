package models

import (
	"errors"
	"fmt"
)

// TrackStatus is the lifecycle state of a RoomTrack.
type TrackStatus string

const (
	StatusQueued  TrackStatus = "queued"
	StatusPlaying TrackStatus = "playing"
	StatusPlayed  TrackStatus = "played"
	StatusRemoved TrackStatus = "removed"
)

// ErrInvalidTransition is returned when a status change would move a track backwards.
var ErrInvalidTransition = errors.New("models: invalid track status transition")

var allowedTransitions = map[TrackStatus][]TrackStatus{
	StatusQueued:  {StatusPlaying, StatusRemoved},
	StatusPlaying: {StatusPlayed},
}

// Valid reports whether s is one of the known statuses.
func (s TrackStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusPlaying, StatusPlayed, StatusRemoved:
		return true
	}
	return false
}

// CanTransition reports whether a track may move from s to next.
func (s TrackStatus) CanTransition(next TrackStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Transition returns next when the move is legal.
func (s TrackStatus) Transition(next TrackStatus) (TrackStatus, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}

func (s TrackStatus) String() string {
	return string(s)
}

// TransitionUpdates validates the move and returns the column updates that
// apply it, keeping the queued guard key in step with the status.
func (s TrackStatus) TransitionUpdates(next TrackStatus) (map[string]interface{}, error) {
	if _, err := s.Transition(next); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{"status": next}
	if next != StatusQueued {
		updates["queued_key"] = nil
	}
	return updates, nil
}
