// Command fintrack-admin runs operator tasks against the fintrack database.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

const usage = `usage: fintrack-admin <command> [flags]

commands:
  create-tokens              issue an auth token to every user without one
  adduser -user U -email E   create a user (-password P, -staff)
  activate -user U           allow U to log in again
  deactivate -user U         block U from logging in
`

// errUsage marks a command line the flag set could not parse.
var errUsage = errors.New("usage")

func main() {
	cli.LoadEnvFile()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg := config.Load()
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: applog.ComponentAdmin,
		Output:    stderr,
	})
	applog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		return 1
	}

	var cmd func(context.Context, *services.IdentityService, []string) error
	switch args[0] {
	case "create-tokens":
		cmd = func(ctx context.Context, ids *services.IdentityService, _ []string) error {
			return createTokens(ctx, ids, stdout)
		}
	case "adduser":
		cmd = func(ctx context.Context, ids *services.IdentityService, rest []string) error {
			return addUser(ctx, ids, rest, stdin, stdout, stderr)
		}
	case "activate", "deactivate":
		active := args[0] == "activate"
		cmd = func(ctx context.Context, ids *services.IdentityService, rest []string) error {
			return setActive(ctx, ids, args[0], rest, active, stdout, stderr)
		}
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		return 1
	}
	defer repo.Close()

	if err := cmd(ctx, services.NewIdentityService(repo, cfg.BcryptCost), args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			return 2
		}
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			for field, msgs := range verr.Map() {
				fmt.Fprintf(stderr, "%s: %s\n", field, strings.Join(msgs, " "))
			}
			return 1
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func createTokens(ctx context.Context, ids *services.IdentityService, stdout io.Writer) error {
	users, err := ids.CreateMissingTokens(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(stdout, "All users already have tokens.")
		return nil
	}
	for _, u := range users {
		fmt.Fprintf(stdout, "Created token for user: %s\n", u.Username)
	}
	fmt.Fprintf(stdout, "Successfully created %d tokens.\n", len(users))
	return nil
}

func addUser(ctx context.Context, ids *services.IdentityService, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		username = fs.String("user", "", "username")
		email    = fs.String("email", "", "email address")
		password = fs.String("password", "", "password; prompted for when empty")
		staff    = fs.Bool("staff", false, "grant staff status")
	)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	in := core.RegisterInput{Username: *username, Email: *email, Password: *password}
	if in.Password == "" {
		var err error
		if in.Password, err = readPassword(stdin, stderr); err != nil {
			return err
		}
	}

	user, _, err := ids.CreateUser(ctx, in, *staff)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Created user %s (id %d)\n", user.Username, user.ID)
	return nil
}

func setActive(ctx context.Context, ids *services.IdentityService, name string, args []string, active bool, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	username := fs.String("user", "", "username")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *username == "" {
		return core.FieldError("user", core.MsgRequired)
	}

	if err := ids.SetActive(ctx, *username, active); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("no user named %q", *username)
		}
		return err
	}
	fmt.Fprintf(stdout, "User %s %sd\n", *username, name)
	return nil
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(stdin io.Reader, prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Password: ")
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
