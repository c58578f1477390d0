package main

import cmd "github.com/kraklabs/reconcrawl/internal/cli"

func main() {
	cmd.Execute()
}
