package domain

import "fmt"

// ErrorKind classifies the errors raised by the local data layer.
type ErrorKind int

const (
	KindGenericLocal ErrorKind = iota
	KindInvalidPassword
	KindPasswordNotConfigured
	KindDuplicateName
	KindNotImplemented
	KindRecordNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidPassword:
		return "InvalidPassword"
	case KindPasswordNotConfigured:
		return "PasswordNotConfigured"
	case KindDuplicateName:
		return "DuplicateName"
	case KindNotImplemented:
		return "NotImplemented"
	case KindRecordNotFound:
		return "RecordNotFound"
	default:
		return "GenericLocal"
	}
}

// Error is the error type returned by every component of the data layer.
// Use errors.Is against the sentinels below to branch on its kind.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind. A RecordNotFound error also
// matches ErrGenericLocal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindGenericLocal && e.Kind == KindRecordNotFound
}

var (
	// ErrInvalidPassword is returned when decryption or verification with the
	// given password fails.
	ErrInvalidPassword = &Error{Kind: KindInvalidPassword}
	// ErrPasswordNotConfigured is returned when verifying before any password
	// has been set.
	ErrPasswordNotConfigured = &Error{Kind: KindPasswordNotConfigured}
	// ErrDuplicateName ...
	ErrDuplicateName = &Error{Kind: KindDuplicateName}
	// ErrNotImplemented ...
	ErrNotImplemented = &Error{Kind: KindNotImplemented}
	// ErrGenericLocal ...
	ErrGenericLocal = &Error{Kind: KindGenericLocal}
	// ErrRecordNotFound ...
	ErrRecordNotFound = &Error{Kind: KindRecordNotFound}
)

func NewGenericLocalError(format string, args ...interface{}) error {
	return &Error{Kind: KindGenericLocal, Msg: fmt.Sprintf(format, args...)}
}

func WrapGenericLocalError(err error, format string, args ...interface{}) error {
	return &Error{Kind: KindGenericLocal, Msg: fmt.Sprintf(format, args...), Err: err}
}

func NewInvalidPasswordError(err error) error {
	return &Error{Kind: KindInvalidPassword, Msg: "invalid password", Err: err}
}

func NewPasswordNotConfiguredError() error {
	return &Error{Kind: KindPasswordNotConfigured, Msg: "password not configured"}
}

func NewDuplicateNameError(name string) error {
	return &Error{Kind: KindDuplicateName, Msg: fmt.Sprintf("name %q already in use", name)}
}

func NewNotImplementedError(what string) error {
	return &Error{Kind: KindNotImplemented, Msg: fmt.Sprintf("%s not implemented", what)}
}

func NewRecordNotFoundError(store StoreName, id string) error {
	return &Error{
		Kind: KindRecordNotFound,
		Msg:  fmt.Sprintf("record %q not found in store %s", id, store),
	}
}
