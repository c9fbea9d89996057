package main

import "github.com/noctave/noctave/cmd"

func main() {
	cmd.Execute()
}
