// Command migrate управляет схемой базы: up, down, force <version>, version.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	migrateV4 "github.com/golang-migrate/migrate/v4"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/config"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/pkg/database"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [-config path] up|down|force <version>|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	config.LoadDotEnv()
	if *configPath == "" {
		*configPath = "config/config.yaml"
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	sqlDB, err := database.GetSQLDB(db)
	if err != nil {
		log.Fatal(err)
	}
	defer sqlDB.Close()

	cmd := flag.Arg(0)

	m, err := database.NewMigrator(sqlDB, cfg.Database.Driver, cfg.Database.MigrationsPath)
	if err != nil {
		log.Fatal(err)
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "force":
		if flag.NArg() < 2 {
			log.Fatal("force requires a version")
		}
		version, convErr := strconv.Atoi(flag.Arg(1))
		if convErr != nil {
			log.Fatalf("invalid version %q: %v", flag.Arg(1), convErr)
		}
		fmt.Printf("Forcing migration version to %d to clean dirty state...\n", version)
		err = m.Force(version)
	case "version":
		version, dirty, verr := m.Version()
		if errors.Is(verr, migrateV4.ErrNilVersion) {
			fmt.Println("No migrations applied yet.")
			return
		}
		if verr != nil {
			log.Fatal(verr)
		}
		fmt.Printf("Version: %d (dirty: %t)\n", version, dirty)
		return
	default:
		flag.Usage()
		os.Exit(2)
	}

	if errors.Is(err, migrateV4.ErrNoChange) {
		fmt.Println("No change: database is up to date.")
		return
	}
	if err != nil {
		log.Fatalf("migrate %s failed: %v", cmd, err)
	}
	fmt.Printf("migrate %s: success\n", cmd)
}
