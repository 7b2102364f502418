// The main package for the wxmaps executable.
package main

import (
	"github.com/nickelblock/forecast-maps/cmd"
)

func main() {
	cmd.Execute()
}
