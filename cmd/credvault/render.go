package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/ericfisherdev/credvault/internal/crypto"
	"github.com/ericfisherdev/credvault/internal/domain/model"
)

func okMark() string   { return color.GreenString("✓") }
func failMark() string { return color.RedString("✗") }

// statusLabel colors a breach status: red for breached, green for clean.
func statusLabel(s model.BreachStatus) string {
	switch s {
	case model.BreachStatusBreached:
		return color.RedString(string(s))
	case model.BreachStatusClean:
		return color.GreenString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

func renderCredentials(w io.Writer, creds []model.Credential) error {
	if len(creds) == 0 {
		_, err := fmt.Fprintln(w, "no credentials stored")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSITE\tUSERNAME\tBROWSER\tBREACH")
	for _, c := range creds {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", c.ID, c.OriginURL, c.Username, c.Browser.DisplayName(), statusLabel(c.Breach))
	}
	return tw.Flush()
}

func renderImportSummary(w io.Writer, s *model.ImportSummary) {
	name := s.Browser.DisplayName()
	if s.Outcome == model.ImportOutcomeNoSource {
		fmt.Fprintf(w, "%s %s: no credential store configured\n", color.CyanString("→"), name)
		return
	}

	fmt.Fprintf(w, "%s %s: read %d, imported %d, already present %d\n",
		okMark(), name, s.Read, s.Inserted, s.Skipped)
	for _, f := range s.Failed {
		fmt.Fprintf(w, "  %s row %d (%s): %s\n", failMark(), f.Index, f.OriginURL, f.Reason)
	}
}

func renderBreachSummary(w io.Writer, s model.BreachSummary) {
	fmt.Fprintf(w, "checked %d: %s breached, %s clean\n",
		s.Checked,
		color.RedString("%d", s.Breached),
		color.GreenString("%d", s.Clean),
	)
	if s.Unavailable > 0 {
		fmt.Fprintf(w, "%s %d could not be checked (breach service unavailable)\n", failMark(), s.Unavailable)
	}
	if s.Undecryptable > 0 {
		fmt.Fprintf(w, "%s %d could not be decrypted\n", failMark(), s.Undecryptable)
	}
}

func isDecryptFailure(err error) bool {
	return errors.Is(err, crypto.ErrMalformedBlob) || errors.Is(err, crypto.ErrAuthenticationFailed)
}
