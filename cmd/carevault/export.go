package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hengadev/carevault"
	s3bucket "github.com/hengadev/carevault/providers/s3"
)

func exportCommand(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	kindFlag := fs.String("kind", string(carevault.ExportPatients), "patients or logs")
	username := fs.String("username", "", "Account the export is made as; the password is read from standard input")
	output := fs.String("out", "", "Output file (default: the standard export file name)")
	upload := fs.Bool("upload", false, "Encrypt and upload to CAREVAULT_EXPORT_BUCKET instead of writing a file")
	fs.Parse(args)

	kind, err := carevault.ParseExportKind(*kindFlag)
	if err != nil {
		return err
	}
	if *username == "" {
		return fmt.Errorf("%w: -username is required", carevault.ErrValidation)
	}
	password, err := readPassword(in)
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, nil)
	if err != nil {
		return err
	}
	cipher, err := rt.cipher(ctx)
	if err != nil {
		return err
	}
	st, err := rt.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	auth, err := rt.authenticator(ctx, st)
	if err != nil {
		return err
	}
	p, err := auth.Authenticate(ctx, *username, password)
	if err != nil {
		return err
	}

	records, err := carevault.NewService(st, st, st, cipher, carevault.WithServiceLogger(rt.logger))
	if err != nil {
		return err
	}

	if *upload {
		if rt.cfg.ExportBucket == "" {
			return fmt.Errorf("%w: %s is not set", carevault.ErrInvalidConfiguration, carevault.EnvExportBucket)
		}
		uploader, err := s3bucket.NewUploader(ctx, s3bucket.Config{Bucket: rt.cfg.ExportBucket, Region: rt.cfg.AWSRegion})
		if err != nil {
			return err
		}
		location, err := records.UploadEncryptedExport(ctx, p, kind, uploader)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Uploaded %s\n", location)
		return nil
	}

	path := *output
	if path == "" {
		path = carevault.ExportFileName(kind, time.Now())
	}
	n, err := writeExport(ctx, records, p, kind, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %d rows to %s\n", n, path)
	return nil
}

// writeExport writes the export to path. The file is removed when the export
// fails, so a partial CSV is never left behind.
func writeExport(ctx context.Context, records *carevault.Service, p carevault.Principal, kind carevault.ExportKind, path string) (int, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}

	n, err := records.Export(ctx, p, kind, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return n, nil
}

func decryptExportCommand(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("decrypt-export", flag.ExitOnError)
	input := fs.String("in", "", "Encrypted export (.csv.enc)")
	output := fs.String("out", "", "Destination CSV (default: standard output)")
	fs.Parse(args)

	if *input == "" {
		return fmt.Errorf("%w: -in is required", carevault.ErrValidation)
	}

	rt, err := newRuntime(ctx, nil)
	if err != nil {
		return err
	}
	cipher, err := rt.cipher(ctx)
	if err != nil {
		return err
	}

	src, err := os.Open(*input)
	if err != nil {
		return err
	}
	defer src.Close()

	if *output == "" {
		return cipher.DecryptExport(src, out)
	}
	dst, err := os.OpenFile(*output, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := cipher.DecryptExport(src, dst); err != nil {
		dst.Close()
		os.Remove(*output)
		return err
	}
	return dst.Close()
}
