// ./main.go
package main

import (
	"github.com/mkarrick/flowpilot/cmd"
)

func main() {
	cmd.Execute()
}
