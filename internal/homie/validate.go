package homie

import (
	"errors"
	"fmt"
)

var ErrEmptyID = errors.New("empty identifier")

// ValidateID checks that id is a topic-safe identifier: lower case letters,
// digits, '-' and '_', not starting with '-'.
func ValidateID(id string) error {
	if len(id) == 0 {
		return ErrEmptyID
	}
	if id[0] == '-' {
		return errors.New("identifier may not begin with '-'")
	}
	for i := 0; i < len(id); i++ {
		b := id[i]
		if (b < 'a' || b > 'z') && (b < '0' || b > '9') && b != '-' && b != '_' {
			return fmt.Errorf("invalid character %q in identifier", b)
		}
	}
	return nil
}
