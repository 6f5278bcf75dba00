package wire

import "encoding/json"

// Frame is the envelope for every websocket message in both directions.
// Event selects exactly one payload schema from this package; Data is
// decoded only after the event name is recognized.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client → server events.
const (
	EventCreateGame   = "createGame"
	EventJoinGame     = "joinGame"
	EventMakeMove     = "makeMove"
	EventOfferDraw    = "offerDraw"
	EventAcceptDraw   = "acceptDraw"
	EventDeclineDraw  = "declineDraw"
	EventResignGame   = "resignGame"
	EventTimeout      = "timeout"
	EventCancelGame   = "cancelGame"
	EventSendChat     = "sendChat"
	EventRequestGames = "requestGames"
)

// Server → client events.
const (
	EventGameCreated        = "gameCreated"
	EventGameStarted        = "gameStarted"
	EventMoveMade           = "moveMade"
	EventDrawOffered        = "drawOffered"
	EventDrawDeclined       = "drawDeclined"
	EventGameFinished       = "gameFinished"
	EventChatMessage        = "chatMessage"
	EventAvailableGames     = "availableGames"
	EventPlayersOnline      = "playersOnline"
	EventPlayerDisconnected = "playerDisconnected"
	EventError              = "error"
)
