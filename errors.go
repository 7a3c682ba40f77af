package strux

import (
	"errors"
	"fmt"
)

var (
	// Registry errors
	ErrTypeNotRegistered     = errors.New("type not registered")
	ErrAmbiguousRegistration = errors.New("ambiguous registration")
	ErrDuplicateSlot         = errors.New("duplicate slot")
	ErrUnknownSlot           = errors.New("unknown slot")

	// Classification errors
	ErrUnsupportedType = errors.New("unsupported type")

	// Slot errors
	ErrValidationFailed   = errors.New("validation failed")
	ErrWriteOnceViolation = errors.New("write-once violation")

	// Store errors
	ErrStoreNotFound    = errors.New("store not found")
	ErrReadOnlyStore    = errors.New("store opened read-only")
	ErrSessionClosed    = errors.New("session closed")
	ErrFormatMismatch   = errors.New("store format mismatch")
	ErrInvalidStructure = errors.New("invalid serialized structure")

	// Array errors
	ErrShapeViolation = errors.New("shape violation")
	ErrScalarResize   = errors.New("resize of 0-dimensional dataset")
	ErrOutOfBounds    = errors.New("index out of bounds")
)

func NewTypeNotRegisteredError(name string) error {
	return fmt.Errorf("%w: no composite type registered under %q", ErrTypeNotRegistered, name)
}

func NewAmbiguousRegistrationError(typeName, existing string) error {
	return fmt.Errorf("%w: type %s is already registered as a %s type",
		ErrAmbiguousRegistration, typeName, existing)
}

func NewUnsupportedTypeError(typeName string) error {
	return fmt.Errorf("%w: %s is not a primitive, dataset, container, or registered composite",
		ErrUnsupportedType, typeName)
}

func NewValidationError(slotName string, err error) error {
	return fmt.Errorf("%w: slot %q rejected value: %w", ErrValidationFailed, slotName, err)
}

func NewWriteOnceError(slotName string) error {
	return fmt.Errorf("%w: slot %q has already been assigned", ErrWriteOnceViolation, slotName)
}

func NewUnknownSlotError(typeName, slotName string) error {
	return fmt.Errorf("%w: composite type %s declares no slot %q", ErrUnknownSlot, typeName, slotName)
}

func NewShapeViolationError(operation string, axis int) error {
	return fmt.Errorf("%w: %s along axis %d is not supported, only the leading axis can grow",
		ErrShapeViolation, operation, axis)
}

func NewOutOfBoundsError(index, extent, axis int) error {
	return fmt.Errorf("%w: index %d exceeds extent %d along axis %d", ErrOutOfBounds, index, extent, axis)
}

// IsResolutionError returns true if the error represents a type resolution failure
// during deserialization.
func IsResolutionError(err error) bool {
	return errors.Is(err, ErrTypeNotRegistered)
}

// IsClassificationError returns true if the error represents a value that matched
// no known serialization category.
func IsClassificationError(err error) bool {
	return errors.Is(err, ErrUnsupportedType)
}

// IsValidationError returns true if the error represents a slot parser rejection
// or an immutability violation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrWriteOnceViolation)
}

// IsStorageShapeError returns true if the error represents an unsupported resize
// or out-of-bounds access on a stored array.
func IsStorageShapeError(err error) bool {
	return errors.Is(err, ErrShapeViolation) ||
		errors.Is(err, ErrScalarResize) ||
		errors.Is(err, ErrOutOfBounds)
}
