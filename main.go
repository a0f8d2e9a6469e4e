package main

import (
	"os"

	"github.com/minutemate/minutemate/cli"
	"github.com/minutemate/minutemate/cli/helpers"
)

func main() {
	cmd := cli.RootCmd()
	if err := cmd.Execute(); err != nil {
		if !helpers.IsReported(err) {
			helpers.OutputError(err, false)
		}
		os.Exit(1)
	}
}
