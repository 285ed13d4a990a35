// logsentry - Access Log Analyzer
//
// logsentry reads a web server access log once and reports traffic
// statistics, security incidents and HTTP errors.
package main

import (
	"os"

	"github.com/ccollicutt/logsentry/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
