package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

type chessOracle struct{}

// NewOracle returns the corentings/chess backed oracle.
func NewOracle() Oracle { return chessOracle{} }

func (chessOracle) StartFEN() string {
	return nchess.NewGame().FEN()
}

func (chessOracle) Apply(history []string, from, to, promotion string) (*MoveResult, error) {
	game := reconstruct(history)
	if game == nil {
		return nil, fmt.Errorf("invalid move history")
	}
	pos := game.Position()

	uci := strings.ToLower(strings.TrimSpace(from) + strings.TrimSpace(to))
	if uci == "" {
		return nil, ErrIllegalMove
	}
	promo := strings.ToLower(strings.TrimSpace(promotion))

	notation := nchess.UCINotation{}
	mv, err := notation.Decode(pos, uci+promo)
	if err != nil && promo != "" {
		// promotion letter sent for a non-promotion move
		mv, err = notation.Decode(pos, uci)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, uci+promo)
	}
	game.Move(mv, nil)

	res := &MoveResult{
		UCI:        mv.String(),
		SAN:        nchess.AlgebraicNotation{}.Encode(pos, mv),
		FEN:        game.FEN(),
		SideToMove: colorName(game.Position().Turn()),
	}
	switch game.Outcome() {
	case nchess.WhiteWon:
		res.Verdict = Verdict{Over: true, Winner: "white", Method: methodName(game)}
	case nchess.BlackWon:
		res.Verdict = Verdict{Over: true, Winner: "black", Method: methodName(game)}
	case nchess.Draw:
		res.Verdict = Verdict{Over: true, Method: methodName(game)}
	}
	return res, nil
}

// reconstruct replays the stored UCI moves from the start position.
// Applying a FEN snapshot instead can double-apply moves in this fork.
func reconstruct(moves []string) *nchess.Game {
	game := nchess.NewGame()
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil
		}
	}
	return game
}

func colorName(c nchess.Color) string {
	if c == nchess.White {
		return "white"
	}
	return "black"
}

func methodName(game *nchess.Game) string {
	return strings.ToLower(game.Method().String())
}
