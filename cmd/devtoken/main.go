// Command devtoken prints an access token for local testing.  Identity
// belongs to the auth service in production; this tool signs tokens
// with the same JWT_SECRET so the API can be exercised by hand:
//
//	TOKEN=$(go run ./cmd/devtoken --role ADMIN)
//	curl -H "Authorization: Bearer $TOKEN" localhost:8080/api/me/tickets
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/iliyamo/seatd/internal/model"
	"github.com/iliyamo/seatd/internal/utils"
)

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Getenv("JWT_SECRET"), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
}

func run(args []string, envSecret string, out io.Writer) error {
	var (
		userID string
		role   string
		secret string
		ttl    time.Duration
	)
	fs := pflag.NewFlagSet("devtoken", pflag.ContinueOnError)
	fs.StringVar(&userID, "user", "", "subject user id (default: random uuid)")
	fs.StringVar(&role, "role", model.RoleUser, "USER or ADMIN")
	fs.StringVar(&secret, "secret", envSecret, "HS256 secret (default: $JWT_SECRET)")
	fs.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	role = strings.ToUpper(role)
	if role != model.RoleUser && role != model.RoleAdmin {
		return fmt.Errorf("unknown role %q", role)
	}
	if secret == "" {
		return errors.New("no secret: set JWT_SECRET or pass --secret")
	}
	if userID == "" {
		userID = uuid.NewString()
	}

	tok, err := utils.NewAccessToken(secret, userID, role, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, tok.Token)
	return err
}
