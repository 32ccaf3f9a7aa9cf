package main

import "github.com/ifclca/ifcqto/cmd"

func main() {
	cmd.Execute()
}
