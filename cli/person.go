package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/models"
	"github.com/Skryldev/people/validate"
)

// personFlags are the editable fields of insert and update.
type personFlags struct {
	name        string
	dateOfBirth string
	photo       string
	email       string
	phone       string
	postalCode  string
}

func (f *personFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "full name")
	fl.StringVar(&f.dateOfBirth, "birth", "", "date of birth (YYYY-MM-DD)")
	fl.StringVar(&f.photo, "photo", "", "path of a PNG photo")
	fl.StringVar(&f.email, "email", "", "email address")
	fl.StringVar(&f.phone, "phone", "", "phone number")
	fl.StringVar(&f.postalCode, "postal-code", "", "postal code")
}

// person builds the value to store. Date and photo problems come back as
// controller validation errors would, so the caller sees a warning.
func (f *personFlags) person(nif string) (*models.Person, error) {
	dob, err := models.ParseDate(f.dateOfBirth)
	if err != nil {
		return nil, usageErrorf("date of birth %q: want YYYY-MM-DD", f.dateOfBirth)
	}
	p := &models.Person{
		NIF:         completeNIF(nif),
		Name:        f.name,
		DateOfBirth: dob,
		Email:       f.email,
		PhoneNumber: f.phone,
		PostalCode:  f.postalCode,
	}
	if f.photo != "" {
		data, err := os.ReadFile(f.photo)
		if err != nil {
			return nil, usageErrorf("photo %s: %v", f.photo, err)
		}
		p.Photo = data
	}
	return p, nil
}

// completeNIF accepts the 8 digits alone and appends the control letter.
func completeNIF(s string) string {
	s = validate.NormalizeNIF(s)
	if full, err := validate.CompleteNIF(s); err == nil {
		return full
	}
	return s
}

func (a *app) insertCmd() *cobra.Command {
	var f personFlags
	cmd := &cobra.Command{
		Use:   "insert NIF",
		Short: "Store a new person (admin)",
		Long:  "Store a new person. The NIF may be given as its 8 digits; the control letter is then computed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.person(args[0])
			if err != nil {
				return err
			}
			ctrl, s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := ctrl.Insert(cmd.Context(), s, p); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "inserted %s\n", p.NIF)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var f personFlags
	cmd := &cobra.Command{
		Use:   "update NIF",
		Short: "Replace every field of a stored person (admin)",
		Long:  "Replace every field of a stored person. Fields not given are cleared.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.person(args[0])
			if err != nil {
				return err
			}
			ctrl, s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := ctrl.Update(cmd.Context(), s, p); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "updated %s\n", p.NIF)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) readCmd() *cobra.Command {
	var photoOut string
	cmd := &cobra.Command{
		Use:   "read NIF",
		Short: "Show a stored person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			p, err := ctrl.Read(cmd.Context(), s, completeNIF(args[0]))
			if err != nil {
				return err
			}
			if photoOut != "" && len(p.Photo) > 0 {
				if err := os.WriteFile(photoOut, p.Photo, 0o644); err != nil {
					return errors.Wrapf(err, "write photo %s", photoOut)
				}
			}
			return printPerson(a.stdout, p)
		},
	}
	cmd.Flags().StringVar(&photoOut, "photo-out", "", "write the photo to this path")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NIF",
		Short: "Remove a stored person (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			nif := completeNIF(args[0])
			if err := ctrl.Delete(cmd.Context(), s, nif); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "deleted %s\n", nif)
			return nil
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every stored person",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			people, err := ctrl.ReadAll(cmd.Context(), s)
			if err != nil {
				return err
			}
			if len(people) == 0 {
				fmt.Fprintln(a.stdout, "no people stored")
				return nil
			}
			for _, p := range people {
				fmt.Fprintln(a.stdout, p.String())
			}
			return nil
		},
	}
}

func (a *app) deleteAllCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Remove every stored person (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return usageErrorf("delete-all needs --yes")
			}
			ctrl, s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := ctrl.DeleteAll(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "deleted every person from %s\n", s.Kind)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}

func (a *app) countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print how many people are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			n, err := ctrl.Count(cmd.Context(), s)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, n)
			return nil
		},
	}
}

// printPerson writes p as a YAML document. The photo is summarized.
func printPerson(w io.Writer, p *models.Person) error {
	out, err := yaml.Marshal(p)
	if err != nil {
		return errors.Wrapf(err, "format %s", p.NIF)
	}
	text := strings.TrimRight(string(out), "\n")
	if len(p.Photo) > 0 {
		text += fmt.Sprintf("\nphoto: %d bytes", len(p.Photo))
	}
	_, err = fmt.Fprintln(w, text)
	return err
}
