package netsplit

// file errors.go holds the error types returned by topology construction
// and the partition planner, plus the error aggregation helper

import (
	"errors"
	"fmt"
	"strings"
)

// sentinels matched through errors.Is by the typed errors below
var (
	ErrPartition           = errors.New("invalid partition request")
	ErrPartitionerFailure  = errors.New("partitioner failure")
	ErrCapacity            = errors.New("capacity exceeded")
	ErrInternalConsistency = errors.New("internal consistency violation")
	ErrConcurrentPlan      = errors.New("topology is already being partitioned")
	ErrLaunchDeadlock      = errors.New("launch order deadlock")
	ErrInvalidTopology     = errors.New("invalid topology")
)

// PartitionError reports a partition count outside [1, NodeCount]
type PartitionError struct {
	Requested int
	NodeCount int
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition count %d outside [1,%d]", e.Requested, e.NodeCount)
}

func (e *PartitionError) Is(target error) bool { return target == ErrPartition }

// PartitionerFailure wraps an error raised by, or a malformed assignment returned by,
// the external graph partitioner
type PartitionerFailure struct {
	Reason string
	Err    error
}

func (e *PartitionerFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("partitioner failure: %s: %v", e.Reason, e.Err)
	}
	return "partitioner failure: " + e.Reason
}

func (e *PartitionerFailure) Unwrap() error { return e.Err }

func (e *PartitionerFailure) Is(target error) bool { return target == ErrPartitionerFailure }

// CapacityError is returned when a topology is asked to hold more hosts (or remotes)
// than its structure allows
type CapacityError struct {
	Where string
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s is full (limit %d)", e.Where, e.Limit)
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacity }

// InternalConsistencyError flags a programming defect, e.g. a reverse lookup of an
// index the IdentityMap never handed out
type InternalConsistencyError struct {
	Msg string
}

func (e *InternalConsistencyError) Error() string {
	return "internal consistency: " + e.Msg
}

func (e *InternalConsistencyError) Is(target error) bool { return target == ErrInternalConsistency }

// failureKind labels an error for the plans_total metric
func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrPartition):
		return "partition_error"
	case errors.Is(err, ErrPartitionerFailure):
		return "partitioner_failure"
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.Is(err, ErrInternalConsistency):
		return "internal"
	case errors.Is(err, ErrInvalidTopology):
		return "invalid"
	case errors.Is(err, ErrConcurrentPlan):
		return "concurrent"
	}
	return "other"
}

// ReportErrs transforms a list of errors and transforms the non-nil ones into a single error
// with comma-separated report of all the constituent errors, and returns it.
func ReportErrs(errs []error) error {
	errMsg := make([]string, 0)
	for _, err := range errs {
		if err != nil {
			errMsg = append(errMsg, err.Error())
		}
	}
	if len(errMsg) == 0 {
		return nil
	}

	return errors.New(strings.Join(errMsg, ","))
}
