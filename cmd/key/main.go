package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"pickup-market/internal/cli"
)

func main() {
	var (
		userID = flag.String("user-id", "", "Backend user id (subject)")
		role   = flag.String("role", "DRIVER", "User role: DRIVER | SELLER")
		secret = flag.String("secret", "", "JWT HMAC secret (HS256) of the local backend stub")
		ttl    = flag.Duration("ttl", 12*time.Hour, "Token lifetime")
	)
	flag.Parse()

	if *userID == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: key --user-id=<id> --role=DRIVER --secret='<secret>' [--ttl=12h]")
		os.Exit(2)
	}

	token, claims, err := cli.GenerateUserToken(*secret, *userID, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	fmt.Println("TOKEN:")
	fmt.Println(token)
	fmt.Println("\nCLAIMS:")
	fmt.Printf("  sub:  %s\n", claims.Subject)
	fmt.Printf("  role: %s\n", claims.Role)
	fmt.Printf("  iat:  %s\n", claims.IssuedAt.Time.UTC().Format(time.RFC3339))
	fmt.Printf("  exp:  %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
}
