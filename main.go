package main

import (
	"github.com/carbridge/carbridge/internal/adapter"
	"github.com/carbridge/carbridge/internal/api"
	"github.com/carbridge/carbridge/internal/api/ws"
	"github.com/carbridge/carbridge/internal/app"
	"github.com/carbridge/carbridge/internal/discovery"
	"github.com/carbridge/carbridge/pkg/shell"
)

func main() {
	app.Init() // init config and logs

	api.Init()       // init HTTP API server
	ws.Init()        // init websocket server
	discovery.Init() // mDNS search for wireless adapters
	adapter.Init()   // adapter sessions (depends on api)

	shell.RunUntilSignal()
}
