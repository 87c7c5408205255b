package main

import "imgtasks/cmd"

func main() {
	cmd.Execute()
}
