package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/hengadev/carevault"
)

type generatedSecret struct {
	name  string
	value string
}

func keygenCommand(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	target := fs.String("store", carevault.SecretBackendEnv, "Destination: env (print as dotenv lines), vault or aws")
	force := fs.Bool("force", false, "Replace secrets that already exist in the store")
	fs.Parse(args)

	cfg, err := carevault.LoadConfig()
	if err != nil {
		return err
	}

	secrets, err := generateSecrets(cfg.PepperAlias)
	if err != nil {
		return err
	}

	if *target == carevault.SecretBackendEnv {
		return writeDotenv(out, secrets)
	}

	cfg.SecretBackend = *target
	if err := cfg.Validate(); err != nil {
		return err
	}
	writer, err := managedSource(ctx, cfg)
	if err != nil {
		return err
	}
	return storeSecrets(ctx, writer, secrets, *force, out)
}

func generateSecrets(pepperName string) ([]generatedSecret, error) {
	key, err := carevault.GenerateStringEncryptionKey()
	if err != nil {
		return nil, err
	}
	pepper, err := carevault.GeneratePepper()
	if err != nil {
		return nil, err
	}
	return []generatedSecret{
		{name: carevault.EncryptionKeyName, value: key},
		{name: pepperName, value: pepper},
	}, nil
}

func writeDotenv(out io.Writer, secrets []generatedSecret) error {
	for _, s := range secrets {
		if _, err := fmt.Fprintf(out, "%s=%s\n", s.name, s.value); err != nil {
			return err
		}
	}
	return nil
}

// storeSecrets writes secrets to writer. Existing values are kept unless force is
// set, since replacing ENCRYPTION_KEY makes every stored record unreadable.
func storeSecrets(ctx context.Context, writer carevault.SecretWriter, secrets []generatedSecret, force bool, out io.Writer) error {
	if writer == nil {
		return fmt.Errorf("%w: no managed secret store selected", carevault.ErrInvalidConfiguration)
	}

	if !force {
		for _, s := range secrets {
			_, err := writer.GetSecret(ctx, s.name)
			switch {
			case err == nil:
				return fmt.Errorf("%s already exists in %s; use -force to replace it", s.name, writer.Name())
			case !errors.Is(err, carevault.ErrSecretNotFound):
				return err
			}
		}
	}

	for _, s := range secrets {
		if err := writer.StoreSecret(ctx, s.name, s.value); err != nil {
			return fmt.Errorf("failed to store %s: %w", s.name, err)
		}
		fmt.Fprintf(out, "Stored %s in %s\n", s.name, writer.Name())
	}
	return nil
}
