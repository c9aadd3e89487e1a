// Package main is the entry point for spacectl, the spaces operator CLI.
package main

import "github.com/aristath/spaces/internal/cli"

func main() {
	cli.Execute()
}
