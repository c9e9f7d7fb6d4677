package greenops

// constError is an immutable error type for sentinel errors.
type constError string

func (e constError) Error() string { return string(e) }

// Sentinel errors, comparable with errors.Is.
var (
	// ErrInvalidUnit indicates an unrecognized mass unit.
	ErrInvalidUnit = constError("invalid carbon unit")

	// ErrInvalidFactorUnit indicates a factor unit not of the form "<mass>/<activity>".
	ErrInvalidFactorUnit = constError("invalid emission factor unit")

	// ErrNegativeValue indicates a negative carbon value.
	ErrNegativeValue = constError("negative carbon value")

	// ErrCalculationOverflow indicates a NaN, Inf or overflowing value.
	ErrCalculationOverflow = constError("calculation overflow")
)
