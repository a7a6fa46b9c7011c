package main

import (
	"fmt"
	"io"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/funvibe/hostinterop/internal/bridge"
	"github.com/funvibe/hostinterop/internal/hosttype"
	"github.com/funvibe/hostinterop/internal/member"
	hostinterop "github.com/funvibe/hostinterop/pkg/embed"
)

var membersCmd = &cobra.Command{
	Use:   "members <class>",
	Short: "List the members a class exposes to guests",
	Args:  cobra.ExactArgs(1),
	RunE:  runMembers,
}

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List registered classes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		for _, name := range e.Bridge().Cache().RegisteredTypes() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func runMembers(cmd *cobra.Command, args []string) error {
	e, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	t, err := lookupClass(e, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	headerColor.Fprintf(out, "instance members of %s\n", hosttype.Name(t))
	if err := listMembers(out, e, sample(t), t, false); err != nil {
		return err
	}
	headerColor.Fprintf(out, "\nstatic members of %s\n", hosttype.Name(t))
	return listMembers(out, e, bridge.StaticClass(t), t, true)
}

func listMembers(w io.Writer, e *hostinterop.Engine, recv any, t reflect.Type, static bool) error {
	names, err := e.Bridge().Members(recv)
	if err != nil {
		return err
	}
	cache := e.Bridge().Cache()
	for _, n := range names {
		fmt.Fprintf(w, "  %-16s %s\n", nameColor.Sprint(n), describeName(cache, t, n, static))
	}
	return nil
}

func describeName(cache *member.Cache, t reflect.Type, name string, static bool) string {
	if m := cache.LookupMethod(t, name, static); m != nil {
		return describeMember(m)
	}
	if f := cache.LookupField(t, name, static); f != nil {
		access := "read-only"
		if f.Writable {
			access = "writable"
		}
		return fmt.Sprintf("%s %s", typeColor.Sprint(hosttype.Name(f.Type)), dimColor.Sprint(access))
	}
	if nt, ok := cache.LookupNested(t, name); ok {
		return fmt.Sprintf("class %s", hosttype.Name(nt))
	}
	return dimColor.Sprint("pseudo member")
}
