package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	command := os.Args[1]
	switch command {
	case "serve":
		err = serveCommand(ctx, os.Args[2:])
	case "keygen":
		err = keygenCommand(ctx, os.Args[2:], os.Stdout)
	case "adduser":
		err = adduserCommand(ctx, os.Args[2:], os.Stdin, os.Stdout)
	case "export":
		err = exportCommand(ctx, os.Args[2:], os.Stdin, os.Stdout)
	case "decrypt-export":
		err = decryptExportCommand(ctx, os.Args[2:], os.Stdout)
	case "init":
		err = initCommand(os.Args[2:], os.Stdout)
	case "version":
		versionCommand(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", command, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  serve           Run the HTTP API\n")
	fmt.Fprintf(os.Stderr, "  keygen          Generate ENCRYPTION_KEY and PASSWORD_PEPPER\n")
	fmt.Fprintf(os.Stderr, "  adduser         Create a user account\n")
	fmt.Fprintf(os.Stderr, "  export          Export patients or audit logs as CSV\n")
	fmt.Fprintf(os.Stderr, "  decrypt-export  Decrypt an uploaded export\n")
	fmt.Fprintf(os.Stderr, "  init            Write a configuration file\n")
	fmt.Fprintf(os.Stderr, "  version         Show version information\n")
	fmt.Fprintf(os.Stderr, "\nRun '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
