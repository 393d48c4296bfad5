package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/booksync/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   admin HTTP bind address (e.g., ":9090")
//	-d string   PostgreSQL DSN
//	-s string   device secret HMAC key
//	-n int      max items (notes + drawings) in one batch save
//	-l string   log format: json, text or zerolog
//	-f string   log file path (empty = stdout)
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-t int      presigned backup URL validity, minutes
//
// Only recognized flags are parsed (see flagx.FilterArgs), so -c/-config
// handled by parseJson do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-m", "-d", "-s", "-n", "-l", "-f", "-u", "-p", "-b", "-g", "-e", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.AdminAddr, "m", config.AdminAddr, "address and port to run admin HTTP server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.IntVar(&config.MaxBatchItems, "n", config.MaxBatchItems, "max items per batch save")
	fs.StringVar(&config.LogFormat, "l", config.LogFormat, "log format (json, text, zerolog)")
	fs.StringVar(&config.LogFile, "f", config.LogFile, "log file path")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 backup bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	backupURLValidity := fs.Int("t", int(config.BackupURLValidity.Minutes()), "backup URL validity (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.BackupURLValidity = time.Duration(*backupURLValidity) * time.Minute
}
