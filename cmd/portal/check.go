package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"enarm/portal/internal/guard"
	"enarm/portal/internal/routes"
	"enarm/portal/internal/session"
)

type checkResult struct {
	Path       string             `json:"path"`
	Kind       routes.Kind        `json:"kind"`
	Screen     string             `json:"screen,omitempty"`
	Guard      string             `json:"guard,omitempty"`
	Allowed    bool               `json:"allowed"`
	Params     map[string]string  `json:"params,omitempty"`
	RedirectTo string             `json:"redirect_to,omitempty"`
	Resume     *guard.ResumeState `json:"resume,omitempty"`
}

func checkCmd() *cobra.Command {
	var (
		file  string
		path  string
		token string
		role  string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate the route guard for a path",
		Long: `Evaluate the route guard for a path as if a browser context held the
given token and role, and print the decision as JSON.`,
		Example: `  portal check --path /dashboard/casos/2
  portal check --path /dashboard/players --token abc --role admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := routes.Load(file)
			if err != nil {
				return err
			}
			loc, err := guard.ParseLocation(path)
			if err != nil {
				return err
			}
			r, err := session.ParseRole(role)
			if err != nil {
				return err
			}

			res := evaluate(table, loc, session.Snapshot{Token: token, Role: r})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", os.Getenv("ROUTES_FILE"), "Route manifest (default: embedded)")
	cmd.Flags().StringVarP(&path, "path", "p", "", "Location to navigate to, e.g. /dashboard?tab=1")
	cmd.Flags().StringVar(&token, "token", "", "Session token (empty means unauthenticated)")
	cmd.Flags().StringVar(&role, "role", "", "Session role: player or admin")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func evaluate(table routes.Table, loc guard.Location, snap session.Snapshot) checkResult {
	rt, params, ok := table.Match(loc.Pathname)
	if !ok {
		return checkResult{Path: loc.String(), Kind: routes.KindRedirect, Allowed: true, RedirectTo: table.Fallback}
	}

	res := checkResult{Path: loc.String(), Kind: rt.Kind(), Params: params}
	switch rt.Kind() {
	case routes.KindRedirect:
		res.Allowed = true
		res.RedirectTo = rt.Redirect
		return res
	case routes.KindLogout:
		res.Allowed = true
		return res
	}

	g, found := guard.ByName(rt.Guard)
	if !found {
		g = guard.Guard{Name: rt.Guard}
	}
	res.Screen = rt.Screen
	res.Guard = g.Name

	decision := g.Evaluate(snap, guard.Request{
		Location: loc,
		Params:   params,
		Target:   guard.Component{Name: rt.Screen},
	})
	switch d := decision.(type) {
	case guard.Allow:
		res.Allowed = true
	case guard.Deny:
		res.RedirectTo = d.RedirectTo
		resume := d.Resume
		res.Resume = &resume
	}
	return res
}
