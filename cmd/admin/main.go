package main

import (
	"errors"
	"log"
	"os"

	"cohortboard/internal/config"
	"cohortboard/internal/db"
	"cohortboard/internal/services"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lshortfile)

	cfg := config.Load()
	conn := db.Init(cfg.Database)

	cli := commandLine{
		db:       conn,
		out:      os.Stdout,
		approved: services.NewApprovedUserService(conn),
		reports:  services.NewReportService(conn),
		counters: services.NewCounterSync(conn),
	}
	if err := cli.run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			logger.Printf("error: %s", err)
		}
		os.Exit(1)
	}
}
