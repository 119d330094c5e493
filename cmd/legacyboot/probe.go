package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report the legacy boot support of the machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Printf("Machine:     %s\n", s.m)
		fmt.Printf("Legacy boot: %s\n", s.ctx.Type)
		fmt.Printf("Volumes:     %d\n", len(s.ctx.Volumes))
		if !s.ctx.WarnIfProblems() {
			fmt.Println("No legacy boot problems found")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
