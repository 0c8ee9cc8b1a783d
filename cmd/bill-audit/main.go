// bill-audit runs purchase-bill audits from the command line.
package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/joseph-ayodele/bill-audit/cmd/bill-audit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
