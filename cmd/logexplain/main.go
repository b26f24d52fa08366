// Package main provides the entry point for logexplain.
// It reads newline-delimited JSON logs and asks a chat-completion model to
// explain them in plain English.
package main

import (
	"os"

	"logexplain/cmd/logexplain/cmd"
	explainerrors "logexplain/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(explainerrors.ExitCode(err))
	}
}
