package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/hengadev/carevault"
)

func adduserCommand(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ExitOnError)
	username := fs.String("username", "", "Account name")
	role := fs.String("role", "", "admin, doctor or receptionist")
	fs.Parse(args)

	if *username == "" || *role == "" {
		return fmt.Errorf("%w: -username and -role are required", carevault.ErrValidation)
	}
	password, err := readPassword(in)
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, nil)
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
	user, err := auth.Register(ctx, *username, password, carevault.ParseRole(*role))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Created %s user %s with id %d\n", user.Role, user.Username, user.ID)
	return nil
}
