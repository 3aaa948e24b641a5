package main

import (
	"github.com/canvaswatch/canvaswatch/cmd"
)

func main() {
	cmd.Execute()
}
