package main

import "github.com/room4-2/livetranslate/cli"

func main() {
	cli.Execute()
}
