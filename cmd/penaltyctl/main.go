// Command penaltyctl triggers the penalty engine's maintenance jobs by hand
// and issues operator tokens.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
