package cli

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
)

// ask prompts for value unless it is already set.
func ask(title string, value *string, secret bool) error {
	if strings.TrimSpace(*value) != "" {
		return nil
	}

	input := huh.NewInput().
		Title(title).
		Value(value).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("required")
			}
			return nil
		})
	if secret {
		input = input.EchoMode(huh.EchoModePassword)
	}
	return input.Run()
}

// askNewPassword prompts for a password twice.
func askNewPassword(title string) (string, error) {
	var pw, confirm string
	if err := ask(title, &pw, true); err != nil {
		return "", err
	}
	if err := ask("Repeat password", &confirm, true); err != nil {
		return "", err
	}
	if pw != confirm {
		return "", errors.New("passwords do not match")
	}
	return pw, nil
}
