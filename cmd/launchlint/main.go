// Command launchlint reports call sites that bypass the scope launch and
// context-switch helpers.
package main

import (
	"os"

	"github.com/NetPo4ki/go-launch/cmd/launchlint/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
