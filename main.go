// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bonial-oss/threatmodel/cmd"
)

func main() {
	os.Exit(exitCode(os.Stderr, cmd.NewRootCommand().Execute()))
}

// exitCode reports err on w and maps it to the process exit status:
// 0 on success, 1 on a policy violation and 2 for usage or input errors.
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *cmd.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	if exitErr.Message != "" {
		fmt.Fprintf(w, "Error: %s\n", exitErr.Message)
	}
	return exitErr.Code
}
