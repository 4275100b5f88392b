package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

var errPasswordMismatch = errors.New("passwords do not match")

// resolvePassword picks the password from the flag, then the configured
// BACKUP_PASSWORD, then a prompt. confirm asks twice when prompting.
func resolvePassword(flagValue, configured, prompt string, confirm bool) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if configured != "" {
		return configured, nil
	}
	if jsonOutput || !term.IsTerminal(int(os.Stdin.Fd())) {
		return readPasswordLine()
	}

	password, err := promptPassword(prompt)
	if err != nil {
		return "", err
	}
	if !confirm {
		return password, nil
	}

	again, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if again != password {
		return "", errPasswordMismatch
	}
	return password, nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read password without echo
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // New line after password

	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	s := string(password)
	for i := range password {
		password[i] = 0
	}
	return s, nil
}

// readPasswordLine reads one line from a non-terminal stdin, so a password
// can be piped in. An empty stdin yields an empty password.
func readPasswordLine() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", nil
	}
	return strings.TrimRight(line, "\r\n"), nil
}
