package main

import "github.com/forPelevin/promptcut/internal/cli"

func main() {
	cli.Main()
}
