// Package main is the elyctl entry point: operational tooling for the
// Elyterra backend (startup, schema migrations, archival).
package main

import (
	"github.com/elyterrax/elyctl/cmd/elyctl/cmd"
)

func main() {
	cmd.Execute()
}
