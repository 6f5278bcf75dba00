package wire

// Error codes reported to the originating participant. These are the
// only codes the server emits; every recoverable failure maps onto one.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeFull                = "FULL"
	CodeWagerMismatch       = "WAGER_MISMATCH"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeWrongTurn           = "WRONG_TURN"
	CodeIllegalMove         = "ILLEGAL_MOVE"
	CodeNotPlaying          = "NOT_PLAYING"
	CodeNotWaiting          = "NOT_WAITING"
	CodeNotCreator          = "NOT_CREATOR"
	CodeBadRequest          = "BAD_REQUEST"
)

// ErrorPayload is the body of an "error" event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
