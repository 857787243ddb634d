package main

import "github.com/nextlevelbuilder/tunedeck/cmd"

func main() {
	cmd.Execute()
}
