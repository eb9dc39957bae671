package models

import "errors"

var (
	// ErrResourceShortfall indicates insufficient money, energy or crops for an action
	ErrResourceShortfall = errors.New("insufficient resources")

	// ErrOrderInconsistency indicates settlement could not find a matching pending order
	ErrOrderInconsistency = errors.New("matching pending trades not found")

	// ErrInvalidDescriptor indicates an unparseable or unknown action descriptor
	ErrInvalidDescriptor = errors.New("invalid action descriptor")

	// ErrUnknownCrop indicates a crop type missing from the rules table
	ErrUnknownCrop = errors.New("unknown crop type")

	// ErrCompetitionRunning indicates a competition is already in progress
	ErrCompetitionRunning = errors.New("competition already running")
)
