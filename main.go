// Command people manages person records over interchangeable storage
// backends. See cli for the commands.
package main

import (
	"os"

	"github.com/Skryldev/people/cli"
)

func main() {
	os.Exit(cli.Execute())
}
