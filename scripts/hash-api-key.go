// Command hash-api-key prints a bcrypt hash for API_SECRET_KEY_HASH.
package main

import (
	"fmt"
	"os"

	"github.com/alarm-messenger/relay-server-go/internal/util"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/hash-api-key.go <api-key>\n")
		os.Exit(1)
	}

	hash, err := util.HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
