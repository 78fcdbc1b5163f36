// ./main.go
package main

import (
	"github.com/conceptmap-dev/conceptmap-cli/cmd"
)

// main is the entry point for the conceptmap CLI. All command-line parsing,
// configuration and execution happens in the cmd package.
func main() {
	cmd.Execute()
}
