// Package discovery finds wireless adapters on the LAN via mDNS.
package discovery

import (
	"fmt"
	"net/http"
	"time"

	"github.com/carbridge/carbridge/internal/api"
	"github.com/carbridge/carbridge/internal/app"
	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"
)

// wireless CPC200 boxes announce this service once a phone network is up
const service = "_carlink._tcp"

func Init() {
	log = app.GetLogger("discovery")

	api.HandleFunc("api/discovery", apiDiscovery)
}

var log zerolog.Logger

func apiDiscovery(w http.ResponseWriter, r *http.Request) {
	entries := make(chan *mdns.ServiceEntry, 16)

	params := mdns.DefaultParams(service)
	params.Entries = entries
	params.Timeout = 3 * time.Second
	params.DisableIPv6 = true

	go func() {
		if err := mdns.Query(params); err != nil {
			log.Warn().Err(err).Msg("[discovery] mdns")
		}
		close(entries)
	}()

	var sources []*api.Source
	for entry := range entries {
		log.Debug().Str("host", entry.Host).Str("name", entry.Name).Msg("[discovery] found")

		sources = append(sources, &api.Source{
			Name: entry.Name,
			Info: entry.Info,
			URL:  fmt.Sprintf("tcp://%s:%d", entry.AddrV4, entry.Port),
		})
	}

	api.ResponseSources(w, sources)
}
