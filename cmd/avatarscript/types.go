package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/avatarscript/internal/script/api"
	plua "github.com/dshills/avatarscript/internal/script/lua"
)

func newTypesCmd(_ *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List the host types scripts can see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos := registeredTypes()
			out := cmd.OutOrStdout()

			if asJSON {
				doc, err := typesJSON(infos)
				if err != nil {
					return err
				}
				fmt.Fprint(out, string(pretty.Pretty([]byte(doc))))
				return nil
			}

			for _, info := range infos {
				fmt.Fprintf(out, "%-12s %s\n", info.Name, strings.Join(info.Members, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

// registeredTypes registers every capability type and returns them by name.
func registeredTypes() []*plua.TypeInfo {
	registry := plua.NewRegistry()
	for _, d := range api.Types() {
		registry.Register(d)
	}

	infos := registry.Types()
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// typesJSON renders infos as an array of {name, id, methods} objects.
func typesJSON(infos []*plua.TypeInfo) (string, error) {
	doc := "[]"
	for i, info := range infos {
		var err error
		prefix := fmt.Sprintf("%d.", i)
		if doc, err = sjson.Set(doc, prefix+"name", info.Name); err != nil {
			return "", err
		}
		if doc, err = sjson.Set(doc, prefix+"id", info.ID); err != nil {
			return "", err
		}
		members := info.Members
		if members == nil {
			members = []string{}
		}
		if doc, err = sjson.Set(doc, prefix+"methods", members); err != nil {
			return "", err
		}
	}
	return doc, nil
}
