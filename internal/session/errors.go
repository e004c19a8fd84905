package session

import "errors"

var (
	ErrInvalidUserName = errors.New("user name is required")
	ErrNoActiveRound   = errors.New("no active round")
	ErrVotingClosed    = errors.New("voting has ended")
	ErrUnknownVote     = errors.New("vote token not allowed")
)
