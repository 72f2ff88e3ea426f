package main

import "github.com/pizzaops/opsight/cmd"

func main() {
	cmd.Execute()
}
