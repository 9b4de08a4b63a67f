package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/opsguardian/ticket-triage/internal/bootstrap"
)

var processFlags struct {
	file string
}

var processCmd = &cobra.Command{
	Use:   "process [ticket-id]",
	Short: "Triage one ticket by id or from a JSON file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processFlags.file, "file", "f", "", "Path to a ticket JSON document")
}

func runProcess(cmd *cobra.Command, args []string) error {
	input, err := processInput(args, processFlags.file)
	if err != nil {
		return err
	}
	return withContainer(cmd.Context(), func(app *bootstrap.Container) error {
		report, err := app.Triage.Process(cmd.Context(), input)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	})
}

func processInput(args []string, file string) (any, error) {
	switch {
	case len(args) == 1 && file != "":
		return nil, errors.New("pass either a ticket id or --file, not both")
	case len(args) == 1:
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ticket id must be an integer: %q", args[0])
		}
		return id, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read ticket file: %w", err)
		}
		return json.RawMessage(data), nil
	}
	return nil, errors.New("a ticket id or --file is required")
}
