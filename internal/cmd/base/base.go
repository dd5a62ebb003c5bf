// Package base holds the pieces shared by every hermes-import subcommand.
package base

import (
	"bytes"
	"flag"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
)

// Command is embedded by every subcommand.
type Command struct {
	Log hclog.Logger
	UI  cli.Ui
}

// NewCommand returns a Command that logs through log and writes to ui.
func NewCommand(log hclog.Logger, ui cli.Ui) *Command {
	return &Command{
		Log: log,
		UI:  ui,
	}
}

// FlagSet wraps flag.FlagSet so commands can render their flags in Help.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet wraps f.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	return &FlagSet{FlagSet: f}
}

// Help returns the flag usage text, or "" when the set has no flags.
func (f *FlagSet) Help() string {
	var buf bytes.Buffer
	n := 0
	f.VisitAll(func(*flag.Flag) { n++ })
	if n == 0 {
		return ""
	}

	buf.WriteString("\n\nOptions:\n\n")
	f.VisitAll(func(fl *flag.Flag) {
		fmt.Fprintf(&buf, "  -%s", fl.Name)
		if name, _ := flag.UnquoteUsage(fl); name != "" {
			fmt.Fprintf(&buf, "=<%s>", name)
		}
		_, usage := flag.UnquoteUsage(fl)
		fmt.Fprintf(&buf, "\n    %s", usage)
		if fl.DefValue != "" && fl.DefValue != "false" && fl.DefValue != "[]" {
			fmt.Fprintf(&buf, " (default: %s)", fl.DefValue)
		}
		buf.WriteString("\n\n")
	})
	return strings.TrimRight(buf.String(), "\n")
}

// StringSliceVar defines a flag that may be repeated or given a
// comma-separated list.
func (f *FlagSet) StringSliceVar(p *[]string, name, usage string) {
	f.Var((*stringSlice)(p), name, usage)
}

type stringSlice []string

func (s *stringSlice) String() string {
	if s == nil {
		return "[]"
	}
	return "[" + strings.Join(*s, ",") + "]"
}

func (s *stringSlice) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}
