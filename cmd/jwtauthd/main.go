// Command jwtauthd serves the token API and runs maintenance tasks.
//
//	jwtauthd [-config path] serve
//	jwtauthd [-config path] migrate
//	jwtauthd [-config path] flushexpired
//	jwtauthd [-config path] createuser -username u -email e -password p [-staff]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/jwtauth/internal/app"
	"github.com/MrEthical07/jwtauth/internal/config"
	"github.com/MrEthical07/jwtauth/internal/logging"
	"github.com/MrEthical07/jwtauth/internal/store/postgres"
)

func main() {
	configPath := flag.String("config", "configs/jwtauthd.yaml", "path to the YAML config file")
	flag.Usage = usage
	flag.Parse()

	cmd := "serve"
	args := flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, log)
	case "migrate":
		err = migrate(ctx, cfg, log)
	case "flushexpired":
		err = flushExpired(ctx, cfg, log)
	case "createuser":
		err = createUser(ctx, cfg, log, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Errorf("%s: %v", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: jwtauthd [-config path] serve|migrate|flushexpired|createuser [flags]")
	flag.PrintDefaults()
}

func serve(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Run(ctx)
}

func migrate(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	db, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	log.Infof("migrations applied")
	return nil
}

func flushExpired(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	n, err := a.FlushExpired(ctx)
	if err != nil {
		return err
	}
	log.Infof("removed %d expired token rows", n)
	return nil
}

func createUser(ctx context.Context, cfg *config.Config, log *logging.Logger, args []string) error {
	fs := flag.NewFlagSet("createuser", flag.ContinueOnError)
	username := fs.String("username", "", "account username")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	staff := fs.Bool("staff", false, "mark the account as staff")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return fmt.Errorf("username and password are required")
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	rec, err := a.CreateUser(ctx, *username, *email, *password, *staff)
	if err != nil {
		return err
	}
	log.WithField("user_id", rec.UserID).Infof("created user %s", rec.Username)
	return nil
}
