package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"enarm/portal/internal/routes"
)

func routesCmd() *cobra.Command {
	var (
		file   string
		asYAML bool
	)

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the route table",
		Long:  `Print the route table, either the embedded default or the manifest given with --file.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := routes.Load(file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asYAML {
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(table); err != nil {
					return fmt.Errorf("encode routes: %w", err)
				}
				return enc.Close()
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tKIND\tGUARD\tTARGET")
			for _, r := range table.Routes {
				switch r.Kind() {
				case routes.KindScreen:
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Path, r.Kind(), r.Guard, r.Screen)
				case routes.KindRedirect:
					fmt.Fprintf(tw, "%s\t%s\t-\t%s\n", r.Path, r.Kind(), r.Redirect)
				case routes.KindLogout:
					fmt.Fprintf(tw, "%s\t%s\t-\t%s\n", r.Path, r.Kind(), r.Logout)
				}
			}
			fmt.Fprintf(tw, "*\tredirect\t-\t%s\n", table.Fallback)
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", os.Getenv("ROUTES_FILE"), "Route manifest (default: embedded)")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the table as YAML")
	return cmd
}
