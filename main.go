package main

import "reqlens/internal/cli"

func main() {
	cli.Execute()
}
