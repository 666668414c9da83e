// Command manage runs administrative tasks against the configured database.
//
//	manage migrate
//	manage createsuperuser -email admin@example.com -username admin -password secret
//	manage flushexpiredtokens
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"taskdesk/backend/internal/config"
	apierrors "taskdesk/backend/internal/errors"
	"taskdesk/backend/internal/logger"
	"taskdesk/backend/internal/server"
	"taskdesk/backend/internal/services"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], envconfig.OsLookuper(), os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, lookuper envconfig.Lookuper, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	cfg, err := config.LoadConfigFrom(ctx, lookuper)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	logger.Init(logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: stderr})

	command, rest := args[0], args[1:]
	switch command {
	case "migrate":
		err = migrate(cfg, stdout)
	case "createsuperuser":
		err = createSuperuser(ctx, cfg, rest, stdout)
	case "flushexpiredtokens":
		err = flushExpiredTokens(ctx, cfg, stdout)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		usage(stderr)
		return exitUsage
	}

	var usageErr usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usageErr):
		fmt.Fprintln(stderr, err)
		return exitUsage
	default:
		fmt.Fprintln(stderr, formatError(err))
		return exitError
	}
}

type usageError string

func (e usageError) Error() string { return string(e) }

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: manage <migrate|createsuperuser|flushexpiredtokens> [flags]")
}

func migrate(cfg *config.Config, stdout io.Writer) error {
	pool, err := server.OpenDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	fmt.Fprintln(stdout, "Migrations applied.")
	return nil
}

func createSuperuser(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("createsuperuser", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "email address used to log in")
	username := fs.String("username", "", "display name")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return usageError("createsuperuser: " + err.Error())
	}

	deps, closeDB, err := open(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := deps.AuthService.CreateSuperuser(ctx, services.RegisterInput{
		Email:    flagValue(fs, "email", *email),
		Username: flagValue(fs, "username", *username),
		Password: flagValue(fs, "password", *password),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Superuser %s created.\n", user.Email)
	return nil
}

func flushExpiredTokens(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	deps, closeDB, err := open(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	removed, err := deps.AuthService.FlushExpiredTokens(ctx, time.Now())
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Removed %d expired tokens.\n", removed)
	return nil
}

// open builds the services without Redis. A revoked jti is always in the
// database, so management commands do not need the cache.
func open(cfg *config.Config) (*server.Dependencies, func(), error) {
	pool, err := server.OpenDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return server.BuildDependencies(cfg, pool, nil), func() { pool.Close() }, nil
}

// flagValue returns nil for flags that were not given so they are reported
// as missing rather than blank.
func flagValue(fs *flag.FlagSet, name, value string) *string {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	if !set {
		return nil
	}
	return &value
}

func formatError(err error) string {
	var ve *apierrors.ValidationError
	if !errors.As(err, &ve) {
		return "error: " + err.Error()
	}

	fields := make([]string, 0, len(ve.Fields))
	for field := range ve.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	for _, field := range fields {
		fmt.Fprintf(&b, "%s: %s\n", field, strings.Join(ve.Fields[field], " "))
	}
	return strings.TrimSuffix(b.String(), "\n")
}
