package errors

import "fmt"

var (
	ErrUnauthenticated    = fmt.Errorf("credential is missing, invalid or expired")
	ErrUserNotFound       = fmt.Errorf("user does not exist")
	ErrChatNotFound       = fmt.Errorf("chat does not exist")
	ErrNotAParticipant    = fmt.Errorf("user is not a participant of the chat")
	ErrMalformedEnvelope  = fmt.Errorf("envelope cannot be decoded")
	ErrUserAlreadyExists  = fmt.Errorf("a user with this email already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid email or password")
	ErrInvalidPassword    = fmt.Errorf("password does not meet requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)
