package capabilities

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
)

const (
	optionOnce   = "Allow for this session"
	optionAlways = "Always allow (save to grants file)"
	optionDeny   = "No, deny"
)

// TerminalPrompter provides interactive terminal prompting for capability grants.
type TerminalPrompter struct {
	out       io.Writer
	grantsRef string

	// terminal serializes forms; only one may own the tty.
	terminal sync.Mutex
}

// NewTerminalPrompter creates a new TerminalPrompter. grantsPath is only
// used in the hint printed for non-interactive runs.
func NewTerminalPrompter(grantsPath string) *TerminalPrompter {
	return &TerminalPrompter{
		out:       os.Stderr,
		grantsRef: grantsPath,
	}
}

// IsInteractive checks if we're running in an interactive terminal.
func (p *TerminalPrompter) IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// PromptForCapability asks the user whether to grant a capability.
func (p *TerminalPrompter) PromptForCapability(ctx context.Context, name string) (granted bool, always bool, err error) {
	p.terminal.Lock()
	defer p.terminal.Unlock()

	var selection string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Permission Requested").
			Description(Describe(name)).
			Options(
				huh.NewOption(optionOnce, optionOnce),
				huh.NewOption(optionAlways, optionAlways),
				huh.NewOption(optionDeny, optionDeny),
			).
			Value(&selection),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return false, false, err
	}

	return parseSelection(selection)
}

// ConfirmRationale explains why capabilities are needed and asks whether to
// continue to the permission prompt.
func (p *TerminalPrompter) ConfirmRationale(ctx context.Context, names []string) (bool, error) {
	p.terminal.Lock()
	defer p.terminal.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(p.out, "\n\033[1;33mPermissions needed\033[0m\n\n")
	for _, name := range names {
		fmt.Fprintf(p.out, "  - %s\n", Describe(name))
	}
	fmt.Fprintf(p.out, "\n")

	accepted := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("These permissions are required to continue").
			Description("You will be asked to grant each of them again.").
			Affirmative("Continue").
			Negative("Not now").
			Value(&accepted),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return false, err
	}
	return accepted, nil
}

// parseSelection maps a prompt answer to (granted, always).
func parseSelection(selection string) (bool, bool, error) {
	switch selection {
	case optionOnce:
		return true, false, nil
	case optionAlways:
		return true, true, nil
	default:
		return false, false, nil
	}
}

// FormatNonInteractiveError creates a helpful error message for non-interactive mode.
func (p *TerminalPrompter) FormatNonInteractiveError(names []string) error {
	var msg strings.Builder
	msg.WriteString("Additional permissions required (running in non-interactive mode)\n\n")
	msg.WriteString("Required permissions:\n")

	for _, name := range names {
		msg.WriteString(fmt.Sprintf("  - %s\n", Describe(name)))
	}

	msg.WriteString("\nTo grant these permissions:\n")
	msg.WriteString("  1. Run interactively and approve when prompted\n")
	msg.WriteString("  2. Use --auto-grant flag (grants all permissions)\n")
	msg.WriteString(fmt.Sprintf("  3. Run: rtperm grants add <capability> (stored in %s)\n", p.grantsRef))

	return fmt.Errorf("%s", msg.String())
}
