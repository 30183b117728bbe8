// Command devtoken prints a signed session token for local testing of the
// wallet API.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/finmen/healcoin-wallet/internal/auth"
	"github.com/finmen/healcoin-wallet/internal/config"
)

func main() {
	user := pflag.StringP("user", "u", "", "user id to put in the token")
	role := pflag.StringP("role", "r", auth.RoleStudent, "role claim (student or admin)")
	ttl := pflag.Duration("ttl", 24*time.Hour, "token lifetime")
	pflag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "devtoken: --user is required")
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}

	tok, err := auth.IssueToken(cfg.Auth.JWTSecret, *user, *role, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: sign: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
