package main

import "github.com/variantdev/deploy/cmd"

func main() {
	cmd.Execute()
}
