package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// emit writes v as indented JSON, or the rows as an aligned table in text mode
func (c *cli) emit(cmd *cobra.Command, v any, headers []string, rows [][]string) error {
	out := cmd.OutOrStdout()
	if c.v.GetString(cfgKeyOutput) == outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if len(headers) > 0 {
		fmt.Fprintln(tw, strings.Join(headers, "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// emitLine writes a single value: the bare string in text mode, {key: value} in JSON
func (c *cli) emitLine(cmd *cobra.Command, key, value string) error {
	if c.v.GetString(cfgKeyOutput) == outputJSON {
		return c.emit(cmd, map[string]string{key: value}, nil, nil)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), value)
	return err
}

func u(v uint) string { return strconv.FormatUint(uint64(v), 10) }

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func when(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func parseUint(s, what string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return uint(n), nil
}
