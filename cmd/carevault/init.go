package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hengadev/carevault"
	"github.com/hengadev/carevault/internal/config"
)

const defaultConfigPath = "carevault.yaml"

func initCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", defaultConfigPath, "Path of the configuration file to write")
	force := fs.Bool("force", false, "Overwrite existing configuration file")
	fs.Parse(args)

	if !*force {
		if _, err := os.Stat(*path); err == nil {
			return fmt.Errorf("configuration file %s already exists; use -force to overwrite", *path)
		}
	}

	if err := writeDefaultConfig(*path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Configuration file written to %s\n", *path)
	fmt.Fprintf(out, "Set %s=%s to use it.\n", carevault.EnvConfigFile, *path)
	return nil
}

// writeDefaultConfig writes a Config holding every default. JWTSecret is left
// empty; it belongs in the environment.
func writeDefaultConfig(path string) error {
	var cfg carevault.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	return config.WriteYAML(path, cfg)
}

func versionCommand(out io.Writer) {
	fmt.Fprintln(out, carevault.VersionInfo())
	fmt.Fprintln(out, "Role-based patient records with field-level encryption")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Secret backends: env, vault, aws")
	fmt.Fprintln(out, "Roles: admin, doctor, receptionist")
}
