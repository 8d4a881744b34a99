package main

import (
	"framewire/internal/client/cmd"
)

func main() {
	cmd.Execute()
}
