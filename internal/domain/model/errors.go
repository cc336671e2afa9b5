package model

// DefaultAuthMessage is used when a login rejection carries no parseable detail.
const DefaultAuthMessage = "Invalid credentials"

// DefaultRegisterMessage is used when a registration rejection carries no
// parseable detail.
const DefaultRegisterMessage = "Registration failed"

// AuthenticationError is a login rejected by the backend. The message is
// server-supplied and safe to surface to the operator.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return DefaultAuthMessage
	}
	return e.Message
}

// RegistrationError is an account creation rejected by the backend.
type RegistrationError struct {
	Message string
}

func (e *RegistrationError) Error() string {
	if e.Message == "" {
		return DefaultRegisterMessage
	}
	return e.Message
}
