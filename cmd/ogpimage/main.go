package main

import "ogpimage/internal/cli"

func main() {
	cli.Execute()
}
