// Command hashpw prints a bcrypt hash for an operator password, ready to be
// pasted into AUTH_OPERATORS as username:hash.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/accessgate/access-gate/internal/auth"
	"github.com/accessgate/access-gate/internal/config"
)

func main() {
	defaultCost := 12
	if cfg, err := config.Load(); err == nil {
		defaultCost = cfg.Auth.BcryptCost
	}

	username := flag.String("user", "", "operator username; when set the output is user:hash")
	cost := flag.Int("cost", defaultCost, "bcrypt cost (default from AUTH_BCRYPT_COST)")
	flag.Parse()

	fmt.Fprint(os.Stderr, "password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintf(os.Stderr, "read password: %v\n", err)
		os.Exit(1)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		fmt.Fprintln(os.Stderr, "password must not be empty")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password, *cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash: %v\n", err)
		os.Exit(1)
	}
	if *username != "" {
		fmt.Printf("%s:%s\n", *username, hash)
		return
	}
	fmt.Println(hash)
}
