package main

import "github.com/jcdickinson/docloc/cmd"

func main() {
	cmd.Execute()
}
