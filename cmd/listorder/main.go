// Command listorder maintains dense 1..N positions for records of a
// document collection, per scope.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/listorder/internal/cli"
)

func main() {
	err := cli.Execute()
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// Argument and flag errors are not reported by the commands.
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
