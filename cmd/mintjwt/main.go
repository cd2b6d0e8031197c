package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"qrattend/internal/auth"
	"qrattend/internal/config"
)

// mintjwt prints a signed identity token for local testing, e.g.
//
//	go run ./cmd/mintjwt -role teacher -id 1
func main() {
	role := flag.String("role", auth.RoleStudent, "teacher or student")
	id := flag.Int64("id", 0, "teacher or student id")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to ACCESS_TTL)")
	flag.Parse()

	cfg := config.Load()
	if *ttl <= 0 {
		*ttl = cfg.AccessTTL
	}

	token, exp, err := auth.Issue(auth.Identity{ID: *id, Role: *role}, cfg.JWTIssuer, cfg.JWTSigningKey, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mintjwt:", err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintln(os.Stderr, "expires", exp.Format(time.RFC3339))
}
