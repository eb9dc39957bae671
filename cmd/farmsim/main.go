package main

import "github.com/xtrntr/farmduel/internal/cli"

func main() {
	cli.Execute()
}
