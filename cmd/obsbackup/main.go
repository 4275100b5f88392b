package main

import (
	"errors"
	"os"

	"github.com/TheMichaelB/obsbackup/internal/crypto"
	"github.com/TheMichaelB/obsbackup/internal/models"
)

// Exit codes
const (
	exitOK = iota
	exitError
	exitUsage
	exitAuth
	exitInput
	exitOutput
	exitVault
)

func main() {
	err := rootCmd.Execute()
	shutdown()
	if err == nil {
		os.Exit(exitOK)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
			"code":    errorCode(err),
		})
	} else {
		printError("%v", err)
	}
	os.Exit(exitCode(err))
}

// errorCode returns the most specific stable code for err.
func errorCode(err error) string {
	if code := crypto.Code(err); code != crypto.ErrCodeUnknown {
		return code
	}
	return models.ErrorCode(err)
}

func exitCode(err error) int {
	var usage *usageError
	if errors.As(err, &usage) {
		return exitUsage
	}

	switch crypto.Code(err) {
	case crypto.ErrCodeAuthentication, crypto.ErrCodeEmptyPassword:
		return exitAuth
	case crypto.ErrCodeInputNotFound, crypto.ErrCodeEmptyInput, crypto.ErrCodeMalformedInput:
		return exitInput
	case crypto.ErrCodeOutputExists, crypto.ErrCodeOutputWrite:
		return exitOutput
	}

	switch models.ErrorCode(err) {
	case models.ErrCodeVault:
		return exitVault
	case models.ErrCodeEncryption:
		return exitAuth
	case models.ErrCodeConfig:
		return exitUsage
	}

	return exitError
}

// usageError marks mistakes in how the command was invoked.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}
