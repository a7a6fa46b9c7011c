package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/funvibe/hostinterop/internal/bridge"
	"github.com/funvibe/hostinterop/internal/interop"
	"github.com/funvibe/hostinterop/internal/member"
	hostinterop "github.com/funvibe/hostinterop/pkg/embed"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [flags] <class> <member> [args...] [/ args...]",
	Short: "Resolve and invoke calls of a member through one call site",
	Long: `Resolve calls of a member of a registered class. Arguments are guest
literals: null, true, 'c', "text", 42, 1.5, [1, 2], {a: 1}. Separate the
argument lists of consecutive calls with "/"; all calls share one call site so
its cache state can be observed.`,
	Example: `  hostcall resolve '*bytes.Buffer' write '"hi"' / 42 / "'x'"
  hostcall resolve main.Examples f 5 / 5000000000`,
	Args: cobra.MinimumNArgs(2),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().Bool("static", false, "resolve a static member even if an instance member has the same name")
	resolveCmd.Flags().Bool("no-invoke", false, "only select overloads, do not call them")
	resolveCmd.Flags().String("profile", "", "record call-site transitions in this SQLite file")
}

func runResolve(cmd *cobra.Command, args []string) error {
	static, err := cmd.Flags().GetBool("static")
	if err != nil {
		return fmt.Errorf("failed to get static flag: %w", err)
	}
	noInvoke, err := cmd.Flags().GetBool("no-invoke")
	if err != nil {
		return fmt.Errorf("failed to get no-invoke flag: %w", err)
	}
	profilePath, err := cmd.Flags().GetString("profile")
	if err != nil {
		return fmt.Errorf("failed to get profile flag: %w", err)
	}

	var extra []hostinterop.Option
	if profilePath != "" {
		extra = append(extra, hostinterop.WithProfile(profilePath))
	}
	e, err := newEngine(cmd, extra...)
	if err != nil {
		return err
	}
	defer e.Close()

	t, err := lookupClass(e, args[0])
	if err != nil {
		return err
	}
	name := args[1]
	cache := e.Bridge().Cache()

	var recv any
	m := cache.LookupMethod(t, name, false)
	if static || m == nil {
		m = cache.LookupMethod(t, name, true)
		recv = bridge.StaticClass(t)
	} else {
		recv = sample(t)
	}
	if m == nil {
		return &interop.UnknownMemberError{Name: name, Type: t}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", headerColor.Sprint("member"), describeMember(m))

	site := e.Bridge().NewInvokeSite(name)
	resolver := e.Bridge().Executor().Resolver()
	for i, callArgs := range splitCalls(args[2:]) {
		fmt.Fprintf(out, "\n%s %s(%s)\n", headerColor.Sprintf("call %d:", i+1), name, interop.DescribeArgs(callArgs))
		sel, shape, err := resolver.SelectShaped(m, callArgs)
		if err != nil {
			printError(out, err)
			continue
		}
		fmt.Fprintf(out, "  selected: %s\n", nameColor.Sprint(sel))
		if shape != nil {
			fmt.Fprintf(out, "  shape:    %s\n", typeColor.Sprint(shape))
		}
		if noInvoke {
			continue
		}
		res, err := site.Invoke(recv, callArgs...)
		if err != nil {
			printError(out, err)
			continue
		}
		cs := site.CallSite()
		fmt.Fprintf(out, "  result:   %s\n", interop.Describe(res))
		fmt.Fprintf(out, "  site:     %s %s\n", cs.State(), dimColor.Sprintf("(%d cached)", cs.Entries()))
	}
	if profilePath != "" {
		fmt.Fprintf(out, "\n%s %s\n", dimColor.Sprint("site id"), site.CallSite().ID)
	}
	return nil
}

func describeMember(m member.Member) string {
	switch x := m.(type) {
	case *member.Overloaded:
		return fmt.Sprintf("%s = %s", x.Name, x)
	case *member.Method:
		return x.String()
	}
	return m.MemberName()
}

func printError(w io.Writer, err error) {
	d := interop.ToErrorDetail(err)
	fmt.Fprintf(w, "  %s %s\n", errorColor.Sprintf("error[%s]:", d.Kind), d.Message)
}
