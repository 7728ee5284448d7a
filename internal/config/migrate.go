package config

import (
	"database/sql"
	"embed"
	"fmt"
	"log"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationDir = "migrations"

func initGoose() error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}

// MigrateUp applies every pending migration
func MigrateUp(db *sql.DB) error {
	if err := initGoose(); err != nil {
		return err
	}
	if err := goose.Up(db, migrationDir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	log.Println("✅ Database migrations applied")
	return nil
}

// MigrateDown rolls back the most recent migration
func MigrateDown(db *sql.DB) error {
	if err := initGoose(); err != nil {
		return err
	}
	if err := goose.Down(db, migrationDir); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// MigrateStatus prints the applied state of each migration
func MigrateStatus(db *sql.DB) error {
	if err := initGoose(); err != nil {
		return err
	}
	return goose.Status(db, migrationDir)
}
