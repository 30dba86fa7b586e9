// Command chessmentor is a chess puzzle trainer and casual opponent.
package main

import (
	"os"

	"github.com/Heizenburger/chess-mentor/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
