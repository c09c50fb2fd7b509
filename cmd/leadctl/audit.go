package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/unclebandit/lead-ingest/internal/app"
)

var auditLimit int

type auditEntry struct {
	FileType   string `yaml:"fileType"`
	FilePath   string `yaml:"filePath"`
	SavedOn    string `yaml:"savedOn"`
	Created    int    `yaml:"created,omitempty"`
	Updated    int    `yaml:"updated,omitempty"`
	Errored    int    `yaml:"errored,omitempty"`
	ErrorsPath string `yaml:"errorsPath,omitempty"`
	At         string `yaml:"at"`
}

var auditCmd = &cobra.Command{
	Use:   "audit <campaign-id>",
	Short: "Show recent upload activity and the lead count for a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			id := args[0]
			n, err := a.Leads.CountByCampaign(ctx, id)
			if err != nil {
				return err
			}
			actions, err := a.Audit.ListByCampaign(ctx, id, auditLimit)
			if err != nil {
				return err
			}

			out := struct {
				Campaign string       `yaml:"campaign"`
				Leads    int          `yaml:"leads"`
				Recent   []auditEntry `yaml:"recent"`
			}{Campaign: id, Leads: n}
			for _, act := range actions {
				out.Recent = append(out.Recent, auditEntry{
					FileType:   act.FileType,
					FilePath:   act.FilePath,
					SavedOn:    act.SavedOn,
					Created:    act.Created,
					Updated:    act.Updated,
					Errored:    act.Errored,
					ErrorsPath: act.ErrorsPath,
					At:         act.CreatedAt.Format("2006-01-02 15:04:05"),
				})
			}
			b, err := yaml.Marshal(out)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(b))
			return nil
		})
	},
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "number of entries to show")
}
