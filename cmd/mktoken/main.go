// Command mktoken issues an operator token for the admin API. Tokens are
// minted out-of-band; the API has no login route.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kortekstream/kortekstream/internal/auth"
)

func main() {
	operator := flag.String("operator", "", "operator identifier to embed in the token")
	flag.Parse()

	if *operator == "" {
		fmt.Fprintln(os.Stderr, "usage: mktoken -operator <id>")
		os.Exit(2)
	}

	signingKey := os.Getenv("JWT_SIGNING_KEY")
	if signingKey == "" {
		fmt.Fprintln(os.Stderr, "JWT_SIGNING_KEY must be set")
		os.Exit(2)
	}

	service := auth.NewService(auth.Config{SigningKey: signingKey})

	token, expiresAt, err := service.GenerateToken(*operator)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
}
