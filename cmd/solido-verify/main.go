package main

import (
	"errors"
	"os"

	"github.com/lidofinance/solido-verify/internal/cli"
	"github.com/lidofinance/solido-verify/internal/verifier"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		// A missing or unusable solido binary gets its own exit code so
		// signing automation can tell it apart from a policy violation.
		if errors.Is(err, verifier.ErrCollaboratorUnavailable) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
