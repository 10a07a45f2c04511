// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

// Command gen-schema writes the character catalog JSON Schema that
// catalog authors point their editors at.
//
//	gen-schema [OUTPUT]
//
// OUTPUT defaults to schemas/catalog.schema.json.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/gachafight/arena/internal/catalog"
)

var defaultOutput = filepath.Join("schemas", "catalog.schema.json")

func main() {
	out := defaultOutput
	if len(os.Args) > 1 {
		out = os.Args[1]
	}
	if err := writeSchema(out); err != nil {
		fmt.Fprintf(os.Stderr, "gen-schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s\n", out)
}

func writeSchema(path string) error {
	schema, err := catalog.GenerateSchema()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", path).Wrap(err)
	}
	if err := os.WriteFile(path, append(schema, '\n'), 0o600); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
