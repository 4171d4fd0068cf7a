package main

import (
	"github.com/KLTN-2025/PTNTYTST5951/cmd"
	"github.com/KLTN-2025/PTNTYTST5951/globals"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	config, err := cmd.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := config.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	zerolog.SetGlobalLevel(config.LogLevel)
	globals.StrictMode = config.StrictMode
	if !config.StrictMode {
		log.Warn().Msg("Strict mode is disabled, session cookies are sent without the Secure flag")
	}
	log.Info().Msgf("Public interface listens on %s", config.Public.Address)
	log.Info().Msgf("Using FHIR server on %s", config.FHIR.BaseURL)
	log.Info().Msgf("Using Keycloak realm %s", config.Keycloak.IssuerURL())
	if err := cmd.Start(*config); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
	log.Info().Msg("Goodbye!")
}
