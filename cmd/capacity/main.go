/*
main.go - Application entry point

PURPOSE:
  Command line for the capacity planning service. "serve" runs the HTTP API
  with the periodic directory sync; "sync" runs one directory sync and exits.

CONFIGURATION:
  Read by config.Load in this order, later sources winning:
    1. Built-in defaults
    2. YAML file (--config or CAPACITY_CONFIG)
    3. Legacy environment names (JIRA_URL, TEMPO_API_TOKEN, DATABASE_URL, ...)
    4. CAPACITY_* environment variables, "__" separating sections
  A .env file in the working directory is loaded into the environment first.

EXAMPLES:
  # Run with defaults (team_capacity.db, :8080)
  capacity serve

  # In-memory database on another port
  CAPACITY_DATABASE_PATH=":memory:" CAPACITY_ADDR=":3000" capacity serve

  # One-off mirror refresh
  capacity sync --only users

SEE ALSO:
  - config/loader.go: Source precedence
  - api/server.go: Router configuration
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
