package shell

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

func RunUntilSignal() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msgf("exit with signal: %s", <-sigs)
	os.Exit(0)
}
