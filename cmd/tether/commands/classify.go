package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MEKXH/tether/internal/classify"
	"github.com/spf13/cobra"
)

func NewClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [output]",
		Short: "Classify shell output as success or failure",
		Long:  "Reads raw shell output from the arguments, or from stdin when none are given, and prints the verdict the controller would reach for it.",
		RunE:  runClassify,
	}
}

func runClassify(cmd *cobra.Command, args []string) error {
	var raw string
	if len(args) > 0 {
		raw = strings.Join(args, " ")
	} else {
		in := io.Reader(os.Stdin)
		if cmd != nil {
			in = cmd.InOrStdin()
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("read output: %w", err)
		}
		raw = string(data)
	}
	if strings.TrimSpace(raw) == "" {
		return errors.New("no output to classify")
	}

	verdict := classify.New().Classify(raw)
	fmt.Printf("Outcome: %s\n", verdict.Outcome)
	if verdict.Failed() {
		fmt.Printf("Rule:    %s\n", verdict.Rule)
		if verdict.Detail != "" {
			fmt.Printf("Detail:  %s\n", verdict.Detail)
		}
	}
	return nil
}
