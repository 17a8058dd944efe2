package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nestmut/pkg/tracking"
)

type schemaField struct {
	Name string `json:"name" yaml:"name"`
	Kind string `json:"kind" yaml:"kind"`
	Type string `json:"type" yaml:"type"`
}

type schemaRow struct {
	Name   string        `json:"name" yaml:"name"`
	Fields []schemaField `json:"fields" yaml:"fields"`
}

func newSchemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect record schemas",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the record schemas registered in this binary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := []schemaRow{}
			for _, s := range tracking.Schemas() {
				row := schemaRow{Name: s.Name(), Fields: []schemaField{}}
				for _, f := range s.Fields() {
					row.Fields = append(row.Fields, schemaField{Name: f.Name, Kind: f.Kind.String(), Type: f.Type.String()})
				}
				rows = append(rows, row)
			}
			return a.write(cmd.OutOrStdout(), rows)
		},
	})
	return cmd
}
