package lineproto

// Code is a wire error code carried in `ERR req=<id>;msg=<code>`.
type Code string

const (
	CodeBadVerb           Code = "bad_verb"
	CodeInvalidInput      Code = "invalid_input"
	CodeUserExists        Code = "user_exists"
	CodeBadCredentials    Code = "bad_credentials"
	CodeUnauthorized      Code = "unauthorized"
	CodeNoRoom            Code = "no_room"
	CodeRoomUnavailable   Code = "room_unavailable"
	CodeCannotJoinOwnRoom Code = "cannot_join_own_room"
	CodeNotPlaying        Code = "not_playing"
	CodeBadMove           Code = "bad_move"
	CodeNotYourTurn       Code = "not_your_turn"
	CodeNoOffer           Code = "no_offer"
	CodeUnknownCmd        Code = "unknown_cmd"
	CodeException         Code = "exception"
)

// Error is a protocol-level failure returned to clients.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return string(e.Code)
	}
	return "protocol error"
}

// ResponseError converts an ERR response into an *Error, or returns nil.
func ResponseError(m *Message) error {
	if m == nil || m.Verb != StatusErr {
		return nil
	}
	return &Error{Code: Code(m.Get("msg"))}
}
