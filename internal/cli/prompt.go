package cli

import (
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/mesh-intelligence/snip/pkg/types"
)

var (
	errDeclined   = errors.New("cancelled")
	errNeedsForce = errors.New("confirmation required: stdin is not a terminal, pass --force")
)

// confirm asks a yes/no question on the terminal. force answers yes without
// asking; a non-interactive stdin without force is refused.
func confirm(in io.Reader, force bool, title string) error {
	if force {
		return nil
	}
	if !isTerminal(in) {
		return errNeedsForce
	}
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errDeclined
		}
		return err
	}
	if !ok {
		return errDeclined
	}
	return nil
}

// promptToken asks for a GitHub token without echoing it, and whether to
// keep it in config.yaml. Tests replace it.
var promptToken = func(in io.Reader) (token string, save bool, err error) {
	if !isTerminal(in) {
		return "", false, types.ErrTokenMissing
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("GitHub token (gist scope)").
				Description("Set SNIP_GITHUB_TOKEN to skip this prompt.").
				EchoMode(huh.EchoModePassword).
				Value(&token),
			huh.NewConfirm().
				Title("Save to config?").
				Affirmative("Yes").
				Negative("No").
				Value(&save),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", false, errDeclined
		}
		return "", false, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false, types.ErrTokenMissing
	}
	return token, save, nil
}

// promptSnippet fills the empty fields of s through a form.
func promptSnippet(s *types.Snippet, languages []string) error {
	tags := strings.Join(s.Tags, " ")
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Description").
				Value(&s.Description).
				Validate(func(v string) error {
					if strings.TrimSpace(v) == "" {
						return errors.New("description is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Language").
				Suggestions(languages).
				Value(&s.Language).
				Validate(func(v string) error {
					if strings.TrimSpace(v) == "" {
						return errors.New("language is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Tags").
				Description("Space separated.").
				Value(&tags),
			huh.NewText().
				Title("Code").
				Value(&s.Code),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errDeclined
		}
		return err
	}
	s.Tags = types.SplitTags(tags)
	return nil
}
