package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
)

type validateCmd struct {
	Paths []string `arg:"" type:"existingfile" help:"Dashboard documents to validate."`
}

var errInvalidDocuments = errors.New("dashctl: invalid documents")

func (cmd *validateCmd) Run(_ context.Context, out io.Writer) error {
	failed := 0
	for _, path := range cmd.Paths {
		if err := validateDocument(path); err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "✓ %s\n", path)
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errInvalidDocuments, failed, len(cmd.Paths))
	}
	return nil
}

// validateDocument runs the JSON schema first, then the structural checks
// the processor applies on load.
func validateDocument(path string) error {
	raw, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return err
	}
	data := raw
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		var tree any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
		if data, err = json.Marshal(tree); err != nil {
			return fmt.Errorf("convert to json: %w", err)
		}
	}
	if err := dashboard.ValidateDocumentJSON(data); err != nil {
		return err
	}
	_, err = dashboard.DecodeDocument(bytes.NewReader(raw))
	return err
}
