// ./main.go
package main

import (
	"github.com/xkilldash9x/e2e-harness/cmd"
)

// main is the entry point for the e2e-harness CLI.
func main() {
	cmd.Execute()
}
