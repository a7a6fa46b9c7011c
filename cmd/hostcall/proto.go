package main

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/funvibe/hostinterop/internal/coerce"
	"github.com/funvibe/hostinterop/internal/hosttype"
	"github.com/funvibe/hostinterop/internal/member"
)

var protoCmd = &cobra.Command{
	Use:   "proto [flags] <file.proto> <message> [field=value...]",
	Short: "Show a protobuf message through the bridge and set its fields",
	Long: `Parse a .proto file, build a message and show the fields guests see.
Each field=value assignment is coerced the way a guest write would be; the
resulting message is printed as JSON.`,
	Example: `  hostcall proto api/user.proto acme.User name='"ann"' age=41`,
	Args:    cobra.MinimumNArgs(2),
	RunE:    runProto,
}

func init() {
	protoCmd.Flags().StringSlice("import-path", nil, "directories searched for imports (default: the file's directory)")
}

func runProto(cmd *cobra.Command, args []string) error {
	importPaths, err := cmd.Flags().GetStringSlice("import-path")
	if err != nil {
		return fmt.Errorf("failed to get import-path flag: %w", err)
	}
	e, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	md, err := loadMessage(args[0], args[1], importPaths)
	if err != nil {
		return err
	}
	msg := dynamicpb.NewMessage(md.UnwrapMessage())
	recv := reflect.ValueOf(msg)
	fields := member.ProtoFields(msg.Descriptor(), recv.Type())

	byName := make(map[string]*member.Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	conv := e.Bridge().Converter()
	for _, assign := range args[2:] {
		name, lit, ok := strings.Cut(assign, "=")
		if !ok {
			return fmt.Errorf("expected field=value, got %q", assign)
		}
		f := byName[name]
		if f == nil {
			return fmt.Errorf("message %s has no field %q", md.GetFullyQualifiedName(), name)
		}
		if !f.Writable {
			return fmt.Errorf("field %s is not writable", name)
		}
		v, err := conv.Convert(parseLiteral(lit), f.Type, nil, coerce.ObjectTarget)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		if err := f.Set(recv, v); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	headerColor.Fprintf(out, "message %s\n", md.GetFullyQualifiedName())
	for _, f := range fields {
		v, err := f.Get(recv)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %-16s %-12s %v\n", nameColor.Sprint(f.Name), typeColor.Sprint(hosttype.Name(f.Type)), v)
	}
	js, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s\n", js)
	return nil
}

func loadMessage(file, name string, importPaths []string) (*desc.MessageDescriptor, error) {
	if len(importPaths) == 0 {
		importPaths = []string{filepath.Dir(file)}
		file = filepath.Base(file)
	}
	parser := protoparse.Parser{ImportPaths: importPaths}
	fds, err := parser.ParseFiles(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proto: %w", err)
	}
	for _, fd := range fds {
		if md := fd.FindMessage(name); md != nil {
			return md, nil
		}
		for _, md := range fd.GetMessageTypes() {
			if md.GetName() == name {
				return md, nil
			}
		}
	}
	return nil, fmt.Errorf("message %q not found in %s", name, file)
}
