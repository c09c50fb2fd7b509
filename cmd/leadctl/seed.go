package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/unclebandit/lead-ingest/internal/app"
	"github.com/unclebandit/lead-ingest/internal/model"
)

// seedFile is one campaign with its field mapping.
type seedFile struct {
	model.Campaign `yaml:",inline"`
	Fields         []model.FieldMapping `yaml:"fields"`
}

func loadSeed(path string) (*model.Campaign, []model.FieldMapping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var s seedFile
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	switch {
	case s.ID == "":
		return nil, nil, errors.New("campaign id is required")
	case s.Name == "":
		return nil, nil, errors.New("campaign name is required")
	case len(s.UniqueCols) == 0:
		return nil, nil, errors.New("uniqueCols must name at least one field")
	case len(s.Fields) == 0:
		return nil, nil, errors.New("fields must map at least one column")
	}

	mapped := make(map[string]bool, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.ReadableField == "" || f.InternalField == "" {
			return nil, nil, fmt.Errorf("field %d needs both readable and internal names", i)
		}
		if model.IsReserved(f.InternalField) {
			return nil, nil, fmt.Errorf("field %q maps to reserved name %q", f.ReadableField, f.InternalField)
		}
		f.CampaignID = s.ID
		mapped[f.InternalField] = true
	}
	for _, col := range s.UniqueCols {
		if !mapped[col] {
			return nil, nil, fmt.Errorf("unique column %q is not produced by any field mapping", col)
		}
	}

	c := s.Campaign
	return &c, s.Fields, nil
}

var seedCmd = &cobra.Command{
	Use:   "seed [campaign.yaml...]",
	Short: "Create or replace campaigns and their field mappings",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			for _, path := range args {
				c, fields, err := loadSeed(path)
				if err != nil {
					return err
				}
				if err := a.SaveCampaign(ctx, c, fields); err != nil {
					return fmt.Errorf("failed to seed %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded: %s (%s, %d fields)\n", path, c.ID, len(fields))
			}
			return nil
		})
	},
}
