package main

import (
	"os"

	dbconfig "tokenrank/pkg/config"

	log "github.com/sirupsen/logrus"
)

func main() {
	dbconfig.InitLogging()
	dbconfig.InitDB()

	action := "up"
	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	switch action {
	case "up":
		dbconfig.ExecuteMigrations()
	case "down":
		dbconfig.RollbackMigration()
	default:
		log.Fatalf("Unknown action %q, expected up or down", action)
	}
}
