// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gachafight/arena/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect character catalogs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [FILE]",
		Short: "Validate a character catalog (default: the embedded catalog)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			c, err := catalog.Load(path)
			if err != nil {
				return err
			}
			cmd.Println(formatCatalog(c))
			return nil
		},
	})

	return cmd
}

func formatCatalog(c *catalog.Catalog) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	version := c.Version()
	if version == "" {
		version = "-"
	}
	_, _ = fmt.Fprintf(w, "catalog OK: %d characters, version %s, default %s\n\n", c.Len(), version, c.DefaultID())
	_, _ = fmt.Fprintln(w, "ID\tNAME\tHP\tCE\tABILITIES")
	for _, id := range c.IDs() {
		def, _ := c.Lookup(id)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", def.ID, def.Name, def.HP, def.CEMax, len(def.Abilities))
	}
	_ = w.Flush()
	return string(buf)
}

// byteWriter is an io.Writer that appends to a byte slice.
type byteWriter []byte

func (b *byteWriter) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}
