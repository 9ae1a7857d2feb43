package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-authgate/grantd/internal/bootstrap"
	"github.com/go-authgate/grantd/internal/config"
	"github.com/go-authgate/grantd/internal/keys"
	"github.com/go-authgate/grantd/internal/version"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Define flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		version.PrintVersion()
		os.Exit(0)
	}

	// Check if command is provided
	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Handle subcommands
	switch args[0] {
	case "server":
		runServer()
	case "keygen":
		runKeygen(args[1:])
	case "hash-secret":
		runHashSecret(args[1:])
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("OAuth 2.0 authorization server")
	fmt.Println("\nCommands:")
	fmt.Println("  server                 Start the authorization server")
	fmt.Println("  keygen [-bits N] [-out FILE]")
	fmt.Println("                         Generate an RSA signing key (PEM)")
	fmt.Println("  hash-secret SECRET     Print the bcrypt hash of a client secret")
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}

func runServer() {
	if err := bootstrap.Run(config.Load()); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func runKeygen(args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	bits := fs.Int("bits", config.MinSigningKeyBits, "RSA key size")
	out := fs.String("out", "", "write the key to FILE instead of stdout")
	_ = fs.Parse(args)

	key, err := keys.GenerateRSAKey(*bits)
	if err != nil {
		log.Fatalf("Failed to generate key: %v", err)
	}
	pemBytes, err := keys.EncodePrivateKeyPEM(key)
	if err != nil {
		log.Fatalf("Failed to encode key: %v", err)
	}

	if *out == "" {
		_, _ = os.Stdout.Write(pemBytes)
		return
	}
	if err := os.WriteFile(*out, pemBytes, 0o600); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}
	fmt.Printf("Wrote %d-bit key to %s (kid=%s)\n", *bits, *out, keys.Thumbprint(&key.PublicKey))
}

func runHashSecret(args []string) {
	if len(args) != 1 || args[0] == "" {
		fmt.Println("Usage: hash-secret SECRET")
		os.Exit(1)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash secret: %v", err)
	}
	fmt.Println(string(hashed))
}
