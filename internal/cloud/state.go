package cloud

import (
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

// State is the authoritative lifecycle status of the instance as reported by
// the EC2 control plane, plus two synthetic members: 'StateTerminated' also
// covers instances old enough to have been reaped (describe returns not-found),
// and 'StateUnknown' covers queries that failed for any other reason.
//
// StateUnknown is never authoritative: callers must not destroy local state
// based on it.
type State string

const (
	StatePending      State = "pending"
	StateRunning      State = "running"
	StateStopping     State = "stopping"
	StateStopped      State = "stopped"
	StateShuttingDown State = "shutting-down"
	StateTerminated   State = "terminated"
	StateUnknown      State = "unknown"
)

// Transitional reports whether the state is temporary and expected to resolve
// to a terminal state without operator action.
func (s State) Transitional() bool {
	switch s {
	case StatePending, StateStopping, StateShuttingDown:
		return true
	case StateRunning, StateStopped, StateTerminated, StateUnknown:
		return false
	}
	return false
}

// Resolution returns the terminal state a transitional state resolves to
// without operator action. For non-transitional states it returns the state
// itself.
func (s State) Resolution() State {
	switch s {
	case StatePending:
		return StateRunning
	case StateStopping:
		return StateStopped
	case StateShuttingDown:
		return StateTerminated
	case StateRunning, StateStopped, StateTerminated, StateUnknown:
		return s
	}
	return s
}

// Terminal reports whether the state is stable until an operator acts on it.
func (s State) Terminal() bool {
	switch s {
	case StateRunning, StateStopped, StateTerminated:
		return true
	case StatePending, StateStopping, StateShuttingDown, StateUnknown:
		return false
	}
	return false
}

func stateFromEC2(name types.InstanceStateName) State {
	switch name {
	case types.InstanceStateNamePending:
		return StatePending
	case types.InstanceStateNameRunning:
		return StateRunning
	case types.InstanceStateNameStopping:
		return StateStopping
	case types.InstanceStateNameStopped:
		return StateStopped
	case types.InstanceStateNameShuttingDown:
		return StateShuttingDown
	case types.InstanceStateNameTerminated:
		return StateTerminated
	}
	return StateUnknown
}

// isNotFound reports whether 'err' is the EC2 API telling us the instance ID
// no longer exists. Terminated instances are eventually reaped and become
// unqueryable, so not-found is equivalent to terminated.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.HasPrefix(apiErr.ErrorCode(), "InvalidInstanceID")
}
