package main

import (
	"os"

	"github.com/SteelMorgan/iostat-loader/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
