package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
)

// IsInteractive reports whether stdout is a terminal. When it isn't, the
// CLI runs in quiet mode.
func IsInteractive() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Prompter asks the user questions on the terminal
type Prompter struct {
	In  io.Reader
	Out io.Writer
}

// NewPrompter returns a Prompter bound to stdin/stderr
func NewPrompter() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stderr}
}

// Confirm asks a yes/no question; anything but y/yes is a no
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	reader := bufio.NewReader(p.In)

	fmt.Fprintf(p.Out, "> %s [y/N]: ", question)

	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		return false, err
	}

	response = strings.TrimSpace(strings.ToLower(response))

	switch response {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// PromptFields asks for one value per key, in order
func (p *Prompter) PromptFields(ctx context.Context, keys []string) (map[string]string, error) {
	answers := make(map[string]string, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		answer := prompt.Input(fmt.Sprintf("- %s: ", key), noSuggestions,
			prompt.OptionPrefixTextColor(prompt.Cyan),
		)
		answers[key] = strings.TrimSpace(answer)
	}
	return answers, nil
}

// PromptOption asks the user to pick one of options; the first letter of an
// option also selects it
func (p *Prompter) PromptOption(ctx context.Context, message string, options []string) (string, error) {
	fmt.Fprintf(p.Out, "> %s\n", message)

	suggestions := make([]prompt.Suggest, len(options))
	for i, o := range options {
		suggestions[i] = prompt.Suggest{Text: o, Description: "--" + o}
	}
	completer := func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursor(), true)
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		answer := strings.TrimSpace(prompt.Input("> ", completer,
			prompt.OptionSuggestionBGColor(prompt.DarkGray),
			prompt.OptionSuggestionTextColor(prompt.White),
			prompt.OptionSelectedSuggestionBGColor(prompt.Blue),
			prompt.OptionSelectedSuggestionTextColor(prompt.White),
		))
		if choice, ok := MatchOption(answer, options); ok {
			return choice, nil
		}
		fmt.Fprintf(p.Out, "> Please pick one of: %s\n", strings.Join(options, ", "))
	}
}

// MatchOption resolves an answer to one of options, by full name or by
// unique first letter
func MatchOption(answer string, options []string) (string, bool) {
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "" {
		return "", false
	}
	var byLetter []string
	for _, o := range options {
		if answer == strings.ToLower(o) {
			return o, true
		}
		if len(answer) == 1 && strings.HasPrefix(strings.ToLower(o), answer) {
			byLetter = append(byLetter, o)
		}
	}
	if len(byLetter) == 1 {
		return byLetter[0], true
	}
	return "", false
}

func noSuggestions(prompt.Document) []prompt.Suggest {
	return nil
}

// Clipboard copies text to the system clipboard
type Clipboard struct{}

func (Clipboard) Copy(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard is not supported on this system")
	}
	return clipboard.WriteAll(text)
}
