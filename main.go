package main

import "github.com/fivepointers/pagerelay/cmd"

func main() {
	cmd.Execute()
}
