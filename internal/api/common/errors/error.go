package errors

import "fmt"

// Error taxonomy of the control-plane core. Handlers match these with
// errors.As and map them to HTTP statuses; services never wrap one kind
// inside another.

type NotFoundError struct {
	Type string
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Type, e.Name)
}

func NotFoundErr(t, name string) NotFoundError {
	return NotFoundError{
		Type: t,
		Name: name,
	}
}

type NotUniqueError struct {
	Type string
	Name string
}

func (e NotUniqueError) Error() string {
	return fmt.Sprintf("multiple %s %s exist", e.Type, e.Name)
}

func NotUniqueErr(t, name string) NotUniqueError {
	return NotUniqueError{
		Type: t,
		Name: name,
	}
}

// CapacityExhaustedError is a backpressure signal: no available item in any
// pool matching the claim criteria. Recoverable; the caller waitlists the
// project or retries against another location/tier.
type CapacityExhaustedError struct {
	LocationID  uint
	TierID      uint
	ProjectType string
}

func (e CapacityExhaustedError) Error() string {
	return fmt.Sprintf("no capacity for project type %s in location %d tier %d",
		e.ProjectType, e.LocationID, e.TierID)
}

func CapacityExhaustedErr(locationID, tierID uint, projectType string) CapacityExhaustedError {
	return CapacityExhaustedError{
		LocationID:  locationID,
		TierID:      tierID,
		ProjectType: projectType,
	}
}

// InvalidTransitionError is a client/programmer error: the requested
// deployment status change is not legal from the row's current status.
// Never auto-retried.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid deployment transition %s -> %s", e.From, e.To)
}

func InvalidTransitionErr(from, to string) InvalidTransitionError {
	return InvalidTransitionError{
		From: from,
		To:   to,
	}
}

// ConflictError covers duplicate external domains and claims that lost
// their race.
type ConflictError struct {
	Type string
	Name string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists or changed concurrently", e.Type, e.Name)
}

func ConflictErr(t, name string) ConflictError {
	return ConflictError{
		Type: t,
		Name: name,
	}
}

// DataIntegrityError marks a broken invariant, e.g. an external domain with
// no matching internal domain. Operator-facing; never auto-repaired and
// never shown to end users as-is.
type DataIntegrityError struct {
	Type   string
	Name   string
	Reason string
}

func (e DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity violation on %s %s: %s", e.Type, e.Name, e.Reason)
}

func DataIntegrityErr(t, name, reason string) DataIntegrityError {
	return DataIntegrityError{
		Type:   t,
		Name:   name,
		Reason: reason,
	}
}
