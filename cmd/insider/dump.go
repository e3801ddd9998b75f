package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"insider/internal/meta"
	"insider/internal/modfile"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] <module>",
	Short: "Print the declarations, markers and bodies of a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noBodies, err := cmd.Flags().GetBool("no-bodies")
		if err != nil {
			return err
		}
		mod, err := modfile.Load(args[0], nil)
		if err != nil {
			return err
		}
		defer mod.Close()
		modfile.LoadSymbols(mod)
		return dumpModule(cmd.OutOrStdout(), mod, !noBodies)
	},
}

func init() {
	dumpCmd.Flags().Bool("no-bodies", false, "omit instruction listings")
}

type dumper struct {
	w   io.Writer
	err error
}

func (d *dumper) line(depth int, format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, strings.Repeat("  ", depth)+format+"\n", args...)
}

func (d *dumper) markers(depth int, decl meta.Decl) {
	for _, m := range decl.Markers().All() {
		d.line(depth, "[%s]", m)
	}
}

func dumpModule(w io.Writer, mod *meta.Module, bodies bool) error {
	d := &dumper{w: w}
	d.line(0, "module %s {%s}", mod.Name, mod.MVID)
	for _, r := range mod.References {
		d.line(1, "reference %s %s", r.Name, r.Version)
	}
	if a := mod.Assembly; a != nil {
		d.line(1, "assembly %s %s", a.Name, a.Version)
		d.markers(2, a)
	}
	for _, t := range mod.Types {
		head := "type " + t.FullName()
		if t.BaseType != nil {
			head += " : " + t.BaseType.FullName()
		}
		if len(t.Interfaces) > 0 {
			names := make([]string, len(t.Interfaces))
			for i, it := range t.Interfaces {
				names[i] = it.FullName()
			}
			head += " implements " + strings.Join(names, ", ")
		}
		d.line(1, "%s", head)
		d.markers(2, t)
		for _, f := range t.Fields {
			d.line(2, "field %s %s", f.Type.FullName(), f.Name)
			d.markers(3, f)
		}
		for _, p := range t.Properties {
			d.line(2, "property %s %s", p.Type.FullName(), p.Name)
			d.markers(3, p)
		}
		for _, e := range t.Events {
			d.line(2, "event %s %s", e.Type.FullName(), e.Name)
			d.markers(3, e)
		}
		for _, m := range t.Methods {
			d.line(2, "method %s(%s)", m.Name, strings.Join(m.ParamTypes(), ", "))
			d.markers(3, m)
			for _, p := range m.Params {
				if p.Markers().Len() > 0 {
					d.line(3, "param %s", p.Name)
					d.markers(4, p)
				}
			}
			if bodies && m.HasBody() && d.err == nil {
				d.err = m.Body.Format(w, strings.Repeat("  ", 3))
			}
		}
	}
	return d.err
}
