package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/parorch/internal/model"
)

// ValidatedCommand is one accepted command and its identity.
type ValidatedCommand struct {
	Position int    `json:"position"`
	Raw      string `json:"raw"`
	Identity string `json:"identity"`
	ID       string `json:"id"`
}

// ValidationIssue is one rejected command.
type ValidationIssue struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Position int    `json:"position"` // 1-based position in the command list
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool               `json:"valid"`
	Commands []ValidatedCommand `json:"commands,omitempty"`
	Errors   []ValidationIssue  `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <commands-file>",
		Short: "Check a command list without running it",
		Long: `Normalize every command of the list and report its identity.

Fails if a command is empty once its output redirection is removed, or if
two commands normalize to the same identity. Every problem is reported,
not only the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, commandsPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	commands, err := LoadCommands(commandsPath)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d command(s) from %s", len(commands), commandsPath)

	if issues := validateCommands(commands, formatter); len(issues) > 0 {
		return outputValidationErrors(formatter, issues)
	}

	m, err := model.New(commands)
	if err != nil {
		// validateCommands accepted the list, so this is unexpected.
		return formatter.Fail(ErrCodeGeneric, ExitCommandError, "ingest failed", err)
	}
	result := ValidationResult{Valid: true}
	for _, c := range m.Commands() {
		result.Commands = append(result.Commands, ValidatedCommand{
			Position: c.Position + 1,
			Raw:      c.Raw,
			Identity: c.Identity,
			ID:       c.ID,
		})
	}
	return outputValidateSuccess(formatter, result)
}

// validateCommands collects every malformed and duplicate command.
func validateCommands(commands []string, formatter *OutputFormatter) []ValidationIssue {
	var issues []ValidationIssue
	seen := make(map[string]int, len(commands))
	for i, raw := range commands {
		identity, err := model.Normalize(raw)
		if err != nil {
			issues = append(issues, ValidationIssue{
				Code:     ErrCodeMalformedCommand,
				Message:  (&model.MalformedCommandError{Position: i, Raw: raw, Reason: "empty after stripping redirection"}).Error(),
				Position: i + 1,
			})
			continue
		}
		formatter.VerboseLog("#%d %s", i+1, identity)
		if first, ok := seen[identity]; ok {
			issues = append(issues, ValidationIssue{
				Code:     ErrCodeDuplicateCommand,
				Message:  (&model.DuplicateCommandError{Identity: identity, First: first, Second: i}).Error(),
				Position: i + 1,
			})
			continue
		}
		seen[identity] = i
	}
	return issues
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	for _, c := range result.Commands {
		fmt.Fprintf(formatter.Writer, "  #%d %s\n", c.Position, c.Identity)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d command(s) valid\n", len(result.Commands))
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, issues []ValidationIssue) error {
	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range issues {
		fmt.Fprintf(formatter.Writer, "command #%d\n", issue.Position)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}
