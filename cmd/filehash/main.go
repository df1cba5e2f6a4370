package main

import "filehash/internal/cli"

func main() {
	cli.Execute()
}
