package domain

// Response codes are part of the public wire contract. Keep values
// stable; clients switch on them.
const (
	CodeCallAnswered    = 2
	CodeCallNotAnswered = 3 // reserved, not emitted yet
	CodeAlreadyInCall   = 430
	CodeUserOffline     = 431
)

// AckError is the error half of a command ack.
type AckError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Ack is the synchronous reply to a call command. The zero value is a
// void ack and is not sent on the wire.
type Ack struct {
	Code    int       `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
	Error   *AckError `json:"error,omitempty"`
}

func (a Ack) IsVoid() bool {
	return a.Code == 0 && a.Message == "" && a.Error == nil
}

var (
	AckCallAnswered  = Ack{Code: CodeCallAnswered, Message: "Call Answered"}
	AckNoIncoming    = Ack{Message: "No Incoming Call"}
	AckNoOngoing     = Ack{Message: "No ongoing call"}
	AckAlreadyInCall = Ack{Error: &AckError{Code: CodeAlreadyInCall, Message: "Already In Call"}}
	AckUserOffline   = Ack{Error: &AckError{Code: CodeUserOffline, Message: "User offline"}}
)
