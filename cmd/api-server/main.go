package main

import (
	"fmt"
	"os"

	"fleet-api-server/cmd/api-server/app"
	"fleet-api-server/cmd/api-server/app/options"
	_ "fleet-api-server/docs"
	log "fleet-api-server/internal/logger"
)

func main() {
	option, err := options.NewOptions()
	if err != nil {
		if option != nil {
			fmt.Print(option.Usage(err))
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}

	logger, err := log.SetupLogger(*option.LogFile, *option.Mode)
	if err != nil {
		os.Exit(1)
	}

	if err := app.Run(option, logger); err != nil {
		os.Exit(1)
	}
}
