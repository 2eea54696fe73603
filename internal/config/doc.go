// Package config loads process settings from a .env file and BOARDSCAN_*
// environment variables. Invalid values fail at startup rather than at the
// first request.
package config
