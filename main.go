package main

import "github.com/samsaffron/workbench/cmd"

func main() {
	cmd.Execute()
}
