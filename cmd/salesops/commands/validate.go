package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/salesops/salesops/pkg/orchestrator"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <intent-file>",
		Short: "Validate an intent document against the intent schema",
		Long: `Validate a candidate intent document against the closed intent schema.

Reads the document from the given file, or from stdin when the file is "-".
On failure every schema violation is reported with its JSON pointer path.`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := readDocument(args[0])
	if err != nil {
		return err
	}

	validator, err := orchestrator.NewIntentValidator()
	if err != nil {
		return err
	}

	intent, err := validator.ValidateJSON(data)
	if err != nil {
		if verr, ok := orchestrator.IsValidationError(err); ok {
			return printValidationError(cmd, verr)
		}
		return err
	}

	if jsonOutput {
		return printJSON(cmd, intent)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Intent %s is valid (%d actions)\n", intent.IntentID, len(intent.Actions))
	return nil
}

func printValidationError(cmd *cobra.Command, verr *orchestrator.ValidationError) error {
	if jsonOutput {
		if err := printJSON(cmd, verr); err != nil {
			return err
		}
		return verr
	}

	fmt.Fprintln(cmd.ErrOrStderr(), verr.Error())
	for _, fieldErr := range verr.Errors {
		path := fieldErr.Path
		if path == "" {
			path = "/"
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", path, fieldErr.Message)
	}
	return verr
}

// readDocument reads the document from a file, or from stdin when the path
// is "-".
func readDocument(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
