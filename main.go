package main

import "github.com/fontanka/EDC-check-sub001/cmd"

func main() {
	cmd.Execute()
}
