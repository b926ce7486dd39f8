package main

import (
	"context"
	"fmt"
	"io"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
)

type commandsCmd struct{}

func (cmd *commandsCmd) Run(_ context.Context, out io.Writer) error {
	for _, commandType := range dashboard.CommandTypes() {
		if _, err := fmt.Fprintln(out, commandType); err != nil {
			return err
		}
	}
	return nil
}
