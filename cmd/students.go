package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStudentsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "Manage the local student roster",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "add ID NAME...",
		Short:   "Add a student",
		Example: `  cardlink students add A0123 Ana Torres`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			student, err := db.AddStudent(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return fmt.Errorf("failed to add student: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", student.ID, student.Name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List students and their linked cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			students, err := db.Students(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCARD")
			for _, s := range students {
				card := "-"
				if s.Card != nil {
					card = s.Card.UID
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Name, card)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unlink UID",
		Short: "Remove a card link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			uid := strings.ToUpper(args[0])
			if err := db.UnlinkCard(cmd.Context(), uid); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unlinked card %s\n", uid)
			return nil
		},
	})

	return cmd
}
