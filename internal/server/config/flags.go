package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-l string   log level
//	-p string   password hash algorithm for new digests (argon2id|bcrypt)
//	-k int      bcrypt cost
//	-o          consume registration keys on use
//	-r string   Redis URL for the session cache
//	-t int      session cache TTL, seconds
//	-w int      shutdown timeout, seconds
//	-m          expose Prometheus metrics
//	-x          trust X-Forwarded-For for the client address
//
// Only these flags are looked at (see flagx.FilterArgs), so -c/-config and
// anything else on the command line is left alone.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:],
		[]string{"-a", "-d", "-l", "-p", "-k", "-r", "-t", "-w"},
		"-o", "-m", "-x")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.PasswordHasher, "p", config.PasswordHasher, "password hash algorithm (argon2id|bcrypt)")
	fs.IntVar(&config.BcryptCost, "k", config.BcryptCost, "bcrypt cost")
	fs.BoolVar(&config.ConsumeRegistrationKeys, "o", config.ConsumeRegistrationKeys, "delete registration keys once used")
	fs.StringVar(&config.RedisURL, "r", config.RedisURL, "redis URL for the session cache")

	sessionCacheTTL := fs.Int("t", int(config.SessionCacheTTL.Seconds()), "session cache TTL (in seconds)")
	shutdownTimeout := fs.Int("w", int(config.ShutdownTimeout.Seconds()), "shutdown timeout (in seconds)")

	fs.BoolVar(&config.MetricsEnabled, "m", config.MetricsEnabled, "expose prometheus metrics")
	fs.BoolVar(&config.TrustProxyHeaders, "x", config.TrustProxyHeaders, "trust X-Forwarded-For for the client address")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionCacheTTL = time.Duration(*sessionCacheTTL) * time.Second
	config.ShutdownTimeout = time.Duration(*shutdownTimeout) * time.Second
}
