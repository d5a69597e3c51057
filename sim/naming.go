package sim

import (
	"fmt"
	"strings"
	"unicode"
)

// Named describes an object that has a name.
type Named interface {
	// Name returns the name of the object.
	Name() string
}

// NamedBase is a base implementation of Named.
type NamedBase struct {
	name string
}

// Name returns the name of the object.
func (b NamedBase) Name() string {
	return b.name
}

// MakeNamedBase creates a new NamedBase. The name must be valid.
func MakeNamedBase(name string) NamedBase {
	NameMustBeValid(name)
	return NamedBase{name: name}
}

// NameMustBeValid panics if the name does not follow the naming convention.
// A name is a dot-separated list of capitalized CamelCase tokens, each
// optionally followed by integer indices in square brackets, for example
// "Sim.Process[3]".
func NameMustBeValid(name string) {
	if err := validateName(name); err != nil {
		panic(fmt.Sprintf("name %q is not valid: %s", name, err))
	}
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}

	for _, token := range strings.Split(name, ".") {
		if err := validateNameToken(token); err != nil {
			return err
		}
	}

	return nil
}

func validateNameToken(token string) error {
	elem, indices, _ := strings.Cut(token, "[")
	if elem == "" {
		return fmt.Errorf("empty token")
	}

	if !unicode.IsUpper(rune(elem[0])) {
		return fmt.Errorf("token %q must be capitalized", elem)
	}

	for _, r := range elem {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Errorf("token %q must be CamelCase", elem)
		}
	}

	if indices == "" {
		return nil
	}

	for _, index := range strings.Split("["+indices, "[")[1:] {
		digits, ok := strings.CutSuffix(index, "]")
		if !ok || digits == "" {
			return fmt.Errorf("bracket must match in %q", token)
		}

		for _, r := range digits {
			if !unicode.IsDigit(r) {
				return fmt.Errorf("index %q must be an integer", digits)
			}
		}
	}

	return nil
}
