package deploy

// Operations reported by InvocationError.
const (
	OpLoadConfig    = "load config"
	OpLoadAWSConfig = "load aws config"
	OpSerialize     = "serialize"
	OpInvoke        = "invoke"
	OpDecode        = "decode"
)

// InvocationError is the one error kind surfaced to the caller of an
// invocation, whatever step failed.
type InvocationError struct {
	Op  string
	Err error
}

func (e *InvocationError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
