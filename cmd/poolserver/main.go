package main

import (
	"flag"
	"fmt"
	"os"

	"poolserver/app"
)

var configPath = flag.String("config", "config.yaml", "путь к файлу конфигурации")

func main() {
	flag.Parse()

	if err := app.Run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "poolserver: %v\n", err)
		os.Exit(1)
	}
}
