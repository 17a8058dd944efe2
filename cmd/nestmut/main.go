// Package main provides the nestmut CLI.
package main

import "github.com/mesh-intelligence/nestmut/internal/cli"

func main() {
	cli.Execute()
}
