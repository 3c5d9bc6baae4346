package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jessevdk/go-flags"
	"github.com/smallbiznis/quotaledger/internal/migration"
	"github.com/smallbiznis/quotaledger/pkg/db"
)

type options struct {
	Host     string `long:"db-host" env:"DATABASE_HOST" default:"localhost" description:"Postgres host"`
	Port     string `long:"db-port" env:"DATABASE_PORT" default:"5432" description:"Postgres port"`
	Name     string `long:"db-name" env:"DATABASE_NAME" default:"quotaledger" description:"Database name"`
	User     string `long:"db-user" env:"DATABASE_USER" default:"postgres" description:"Database user"`
	Password string `long:"db-password" env:"DATABASE_PASSWORD" default:"postgres" description:"Database password"`
	SSLMode  string `long:"db-sslmode" env:"DATABASE_SSLMODE" default:"disable" description:"Postgres sslmode"`
}

func (o options) open() (*sql.DB, error) {
	url := db.Config{
		Type:     "postgres",
		Host:     o.Host,
		Port:     o.Port,
		Name:     o.Name,
		User:     o.User,
		Password: o.Password,
		SSLMode:  o.SSLMode,
	}.PostgresURL()
	conn, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return conn, nil
}

var opts options

type upCommand struct{}

func (upCommand) Execute([]string) error {
	conn, err := opts.open()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := migration.Up(conn); err != nil {
		return err
	}
	log.Println("migrations applied")
	return nil
}

type downCommand struct {
	Steps int `long:"steps" default:"1" description:"Migrations to roll back, 0 rolls back everything"`
}

func (c *downCommand) Execute([]string) error {
	if c.Steps < 0 {
		return errors.New("steps must not be negative")
	}
	conn, err := opts.open()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := migration.Down(conn, c.Steps); err != nil {
		return err
	}
	log.Printf("rolled back (steps=%d)", c.Steps)
	return nil
}

type versionCommand struct{}

func (versionCommand) Execute([]string) error {
	conn, err := opts.open()
	if err != nil {
		return err
	}
	defer conn.Close()

	version, dirty, err := migration.Version(conn)
	if err != nil {
		return err
	}
	fmt.Printf("version=%d dirty=%t\n", version, dirty)
	return nil
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	mustAdd(parser, "up", "Apply all pending migrations", &upCommand{})
	mustAdd(parser, "down", "Roll back migrations", &downCommand{})
	mustAdd(parser, "version", "Print the current schema version", &versionCommand{})

	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}

func mustAdd(parser *flags.Parser, name, short string, cmd any) {
	if _, err := parser.AddCommand(name, short, short, cmd); err != nil {
		log.Fatalf("register %s command: %v", name, err)
	}
}
