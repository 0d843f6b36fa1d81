package main

import (
	"os"

	"github.com/sofmeright/qualitygate/src/cli/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
