package tiergate

import "errors"

var (
	// ErrEntitlementNotFound is returned when a user has no entitlement record
	ErrEntitlementNotFound = errors.New("entitlement not found")

	// ErrPlanNotFound is returned when a sprint plan slot is empty
	ErrPlanNotFound = errors.New("sprint plan not found")

	// ErrInvalidEntitlement is returned for writes with a missing user id
	ErrInvalidEntitlement = errors.New("invalid entitlement")

	// ErrInvalidSlot is returned for plan slots outside [0, MaxPlanSlots)
	ErrInvalidSlot = errors.New("invalid plan slot")

	// ErrNotAuthenticated is returned when an operation requires a caller id
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrStorageUnavailable is returned when the backing store cannot be reached
	ErrStorageUnavailable = errors.New("storage unavailable")
)
