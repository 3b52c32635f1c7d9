package config

// Result encodes the outcome of a config operation. The low nibble holds the
// base result; the upper bits carry qualifying flags whose meaning depends on
// the base result.
type Result int

// Base results.
const (
	Success    Result = 0 // Operation completed
	ErrCode    Result = 1 // Problem with the code (programming error)
	ErrUnknown Result = 2 // Unrecognised variable name
	ErrInvalid Result = 3 // Value could not be set
)

// Flags for Success.
const (
	SucInherited Result = 1 << 4 // Value was read through the inheritance chain
	SucEmpty     Result = 1 << 5 // Result is logically empty
	SucWarning   Result = 1 << 6 // Operation succeeded but the user should be warned
	SucNoChange  Result = 1 << 7 // Value was already equal; nothing was written
)

// Flags for ErrInvalid.
const (
	InvType      Result = 1 << 4 // Value doesn't parse or lies outside the type's range
	InvValidator Result = 1 << 5 // Validator refused the value
	InvNotImpl   Result = 1 << 6 // Operation unsupported for this type
)

const resultMask Result = 0x0f

// Base strips the qualifying flags from a Result.
func (r Result) Base() Result { return r & resultMask }

// IsSuccess reports whether the base result is Success.
func (r Result) IsSuccess() bool { return r.Base() == Success }

// Has reports whether flag is set on the Result.
func (r Result) Has(flag Result) bool { return r&flag != 0 }

// String returns the name of the base result for logging.
func (r Result) String() string {
	switch r.Base() {
	case Success:
		return "success"
	case ErrCode:
		return "internal error"
	case ErrUnknown:
		return "unknown variable"
	case ErrInvalid:
		return "invalid value"
	}
	return "unknown result"
}
