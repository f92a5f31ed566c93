package main

import (
	"os"

	"github.com/bartdeslagmulder/now-cli/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
