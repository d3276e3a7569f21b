package amm

import (
	"fmt"
	"strings"
)

// Direction selects which reserve a swap takes input into.
type Direction uint8

const (
	AToB Direction = iota + 1
	BToA
)

// ParseDirection accepts "a_to_b" / "b_to_a" in any case, with '-' or '_'.
func ParseDirection(s string) (Direction, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "a_to_b", "atob":
		return AToB, nil
	case "b_to_a", "btoa":
		return BToA, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

func (d Direction) Valid() bool {
	return d == AToB || d == BToA
}

func (d Direction) String() string {
	switch d {
	case AToB:
		return "a_to_b"
	case BToA:
		return "b_to_a"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
