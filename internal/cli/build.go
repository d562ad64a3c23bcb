package cli

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"resumeflow/internal/builder"
	"resumeflow/internal/common"
	"resumeflow/internal/errors"
	"resumeflow/internal/formatters"
	"resumeflow/internal/session"
	"resumeflow/internal/types"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a résumé step by step",
	Long: `Walk through the five builder steps (contact, summary, experience,
education, skills) answering prompts. Every answer is saved to the draft
cache, so an interrupted session resumes where it left off.
Press enter to keep the value shown in brackets; type :q to stop and keep the draft.`,
	Args:    cobra.NoArgs,
	PreRunE: outputPreRun(&buildConfig),
	RunE:    runBuild,
}

var buildConfig common.CommandConfig

func init() {
	addOutputFlags(buildCmd, &buildConfig)
}

// errQuit stops the builder and keeps the draft.
var errQuit = stderrors.New("builder stopped")

type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func (p *prompter) ask(label, current string) (string, error) {
	if current != "" {
		_, _ = fmt.Fprintf(p.out, "%s [%s]: ", label, current)
	} else {
		_, _ = fmt.Fprintf(p.out, "%s: ", label)
	}
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", errQuit
	}
	line := strings.TrimSpace(p.in.Text())
	switch line {
	case ":q":
		return "", errQuit
	case "":
		return current, nil
	}
	return line, nil
}

func (p *prompter) confirm(label string) (bool, error) {
	answer, err := p.ask(label+" (y/N)", "")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes"), nil
}

// askAll fills each field in order, stopping at the first error.
func (p *prompter) askAll(fields ...promptField) error {
	for _, f := range fields {
		value, err := p.ask(f.label, *f.target)
		if err != nil {
			return err
		}
		*f.target = value
	}
	return nil
}

type promptField struct {
	label  string
	target *string
}

func splitList(s, sep string) []string {
	var out []string
	for _, item := range strings.Split(s, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	svc, err := newServices(cfg, logger, serviceOptions{})
	if err != nil {
		return err
	}
	defer svc.session.Close()

	sess := svc.session
	if _, err := sess.StartBuilder(); err != nil {
		return err
	}

	p := &prompter{in: bufio.NewScanner(cmd.InOrStdin()), out: cmd.ErrOrStderr()}
	for sess.Stage() == session.StageBuilder {
		state := sess.Snapshot().Builder
		_, _ = fmt.Fprintf(p.out, "\nStep %d of %d: %s\n", state.StepIndex+1, state.StepCount, state.Title)

		err := sess.WithBuilder(func(w *builder.Wizard) error { return fillStep(p, w) })
		if stderrors.Is(err, errQuit) {
			_, _ = fmt.Fprintf(p.out, "\nDraft saved to %s\n", svc.drafts.Path(cfg.Draft.Key))
			return nil
		}
		if err != nil {
			return err
		}

		if state.StepIndex == state.StepCount-1 {
			err = sess.CompleteBuilder()
		} else {
			err = sess.WithBuilder(func(w *builder.Wizard) error { return w.Next() })
		}
		if err != nil {
			if errors.TypeOf(err) != errors.ErrorTypeUserInput {
				return err
			}
			_, _ = fmt.Fprintf(p.out, "%s\n", errors.UserMessage(err))
		}
	}

	snap := sess.Snapshot()
	report, _ := formatters.GlobalRegistry.Format(*snap.Validation, formatters.FormatText)
	_, _ = fmt.Fprintf(p.out, "\n%s\n", report)

	handler := common.NewOutputHandler(cmd.OutOrStdout(), logger)
	return handler.HandleOutput(*snap.Resume, buildConfig)
}

// fillStep prompts for the fields of the wizard's current step.
func fillStep(p *prompter, w *builder.Wizard) error {
	r := w.Resume()
	switch w.Step() {
	case builder.StepContact:
		c := r.Contact
		err := p.askAll(
			promptField{"Full name", &c.Name},
			promptField{"Email", &c.Email},
			promptField{"Phone", &c.Phone},
			promptField{"Location", &c.Location},
			promptField{"LinkedIn (optional)", &c.LinkedIn},
			promptField{"GitHub (optional)", &c.GitHub},
			promptField{"Website (optional)", &c.Website},
		)
		if err != nil {
			return err
		}
		return w.Update(func(r *types.Resume) { r.Contact = c })

	case builder.StepSummary:
		summary, err := p.ask("Professional summary", r.Summary)
		if err != nil {
			return err
		}
		return w.Update(func(r *types.Resume) { r.Summary = summary })

	case builder.StepExperience:
		_, _ = fmt.Fprintf(p.out, "%d experience entries so far\n", len(r.Experience))
		for {
			more, err := p.confirm("Add a work experience entry?")
			if err != nil || !more {
				return err
			}
			var e types.Experience
			var bullets string
			err = p.askAll(
				promptField{"Company", &e.Company},
				promptField{"Position", &e.Position},
				promptField{"Location", &e.Location},
				promptField{"Start date", &e.StartDate},
				promptField{"End date (or Present)", &e.EndDate},
				promptField{"Responsibilities, separated by ;", &bullets},
			)
			if err != nil {
				return err
			}
			id, err := w.AddExperience()
			if err != nil {
				return err
			}
			err = w.UpdateExperience(id, func(exp *types.Experience) {
				e.ID = id
				e.Description = splitList(bullets, ";")
				*exp = e
			})
			if err != nil {
				return err
			}
		}

	case builder.StepEducation:
		_, _ = fmt.Fprintf(p.out, "%d education entries so far\n", len(r.Education))
		for {
			more, err := p.confirm("Add an education entry?")
			if err != nil || !more {
				return err
			}
			var e types.Education
			err = p.askAll(
				promptField{"Institution", &e.Institution},
				promptField{"Degree", &e.Degree},
				promptField{"Field of study", &e.Field},
				promptField{"Location", &e.Location},
				promptField{"Start date", &e.StartDate},
				promptField{"End date", &e.EndDate},
				promptField{"GPA (optional)", &e.GPA},
			)
			if err != nil {
				return err
			}
			id, err := w.AddEducation()
			if err != nil {
				return err
			}
			err = w.UpdateEducation(id, func(edu *types.Education) {
				e.ID = id
				*edu = e
			})
			if err != nil {
				return err
			}
		}

	case builder.StepSkills:
		for _, s := range r.Skills {
			_, _ = fmt.Fprintf(p.out, "%s: %s\n", s.Category, strings.Join(s.Items, ", "))
		}
		for {
			category, err := p.ask("Skill category (blank to finish)", "")
			if err != nil || category == "" {
				return err
			}
			items, err := p.ask("Skills, separated by commas", "")
			if err != nil {
				return err
			}
			if err := w.AddSkills(category, splitList(items, ",")...); err != nil {
				return err
			}
		}
	}
	return nil
}
