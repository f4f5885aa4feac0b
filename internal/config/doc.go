// Package config handles configuration loading for support-bridge.
//
// Configuration is loaded from a YAML file with environment variable
// expansion. Values can reference environment variables:
//
//	channel:
//	  access_token: "${WA_ACCESS_TOKEN}"
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sessions:
//	  idle_ttl: "4h"
//	  sweep_interval: "10m"
//
// Sections:
//
//	server:      webhook listener address
//	store:       session snapshot file path
//	channel:     WhatsApp Cloud API endpoint and tokens
//	chat:        Zulip endpoint, bot credentials, support stream
//	ticketing:   RT endpoint, token, queue
//	sessions:    idle TTL and sweep interval
//	logging:     level and format
package config
