package exception

import "github.com/yanun0323/errors"

var (
	ErrSignalInvalid     = errors.New("signal: invalid payload")
	ErrSignalToken       = errors.New("signal: token mismatch")
	ErrStaleRequest      = errors.New("signal: a newer request exists already")
	ErrPipelineQueueFull = errors.New("signal: pipeline queue full")
	ErrDispatcherStopped = errors.New("signal: dispatcher is not running")
)
