package main

import (
	"github.com/ollamagate/ollamagate/config"
	"github.com/ollamagate/ollamagate/server"
)

func main() {
	cfg := config.LoadConfig()
	server.Run(cfg)
}
