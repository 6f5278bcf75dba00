package wire

import "fmt"

// Coord is a board cell as the UI addresses it: row 0 is the eighth rank
// (black's back rank), col 0 is the a-file.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Valid reports whether the coordinate is on the board.
func (c Coord) Valid() bool {
	return c.Row >= 0 && c.Row < 8 && c.Col >= 0 && c.Col < 8
}

// Square converts the coordinate to algebraic notation ("e2").
func (c Coord) Square() (string, error) {
	if !c.Valid() {
		return "", fmt.Errorf("coordinate off board: row=%d col=%d", c.Row, c.Col)
	}
	return fmt.Sprintf("%c%d", 'a'+byte(c.Col), 8-c.Row), nil
}
