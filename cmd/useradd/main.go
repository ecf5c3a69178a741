// Command useradd creates the first accounts of a fresh install and prints
// the set-password link instead of emailing it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"reportgate/internal/auth"
	"reportgate/internal/config"
	"reportgate/internal/database"
)

func main() {
	addr := flag.String("email", "", "email address of the new account")
	admin := flag.Bool("admin", false, "grant the admin role as well")
	flag.Parse()

	if *addr == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(*addr, *admin); err != nil {
		slog.Error("useradd failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(addr string, admin bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	accounts := &auth.Accounts{
		Users:    auth.NewUserRepository(db),
		Hasher:   auth.NewBcryptHasher(auth.DefaultBcryptCost),
		TokenTTL: cfg.Passwords.TokenTTL,
	}

	roles := []string{auth.RoleUser}
	if admin {
		roles = append(roles, auth.RoleAdmin)
	}
	user, err := accounts.Register(ctx, addr, roles...)
	if err != nil {
		return err
	}
	token, err := accounts.IssuePasswordToken(ctx, user)
	if err != nil {
		return err
	}

	fmt.Printf("created %s (%v)\n", user.Email, user.Roles.Names())
	fmt.Printf("set password within %s: %s/set-password?token=%s\n", cfg.Passwords.TokenTTL, cfg.BaseURL, url.QueryEscape(token))
	return nil
}
