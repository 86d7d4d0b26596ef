package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/famomatic/mediaresolve/client"
	"github.com/famomatic/mediaresolve/internal/config"
)

type resolveFlags struct {
	format      string
	listFormats bool
	json        bool
	workers     int
}

func newResolveCommand(opts *Options) *cobra.Command {
	var flags resolveFlags
	cmd := &cobra.Command{
		Use:   "resolve REFERENCE [REFERENCE...]",
		Short: "Resolve references and print the selected stream URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts, func(s *config.Settings) {
				if cmd.Flags().Changed("format") {
					s.Selection = flags.format
				}
				if cmd.Flags().Changed("workers") {
					s.Workers = flags.workers
				}
				if flags.listFormats {
					s.Selection = ""
				}
			})
			if err != nil {
				return err
			}
			defer e.Close()

			outcomes := e.client.ResolveAll(cmd.Context(), args, e.settings.Workers)
			failed := 0
			for _, o := range outcomes {
				log := e.log.WithField("reference", o.Reference)
				if o.Resolution != nil {
					log = log.WithField("request_id", o.Resolution.RequestID)
				}
				if o.Err != nil {
					failed++
					log.Errorf("%v", o.Err)
					continue
				}
				log.Infof("resolved %d entries, %d failed", len(o.Resolution.Entries), len(o.Resolution.Failures))
			}

			out := cmd.OutOrStdout()
			switch {
			case flags.json:
				err = writeJSON(out, outcomes)
			case flags.listFormats:
				err = writeFormatTables(out, outcomes)
			default:
				err = writeSelected(out, outcomes)
			}
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d reference(s) failed", failed, len(outcomes))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.format, "format", "f", client.DefaultSelection, "format selection expression")
	cmd.Flags().BoolVarP(&flags.listFormats, "list-formats", "F", false, "list every format instead of the selected ones")
	cmd.Flags().BoolVar(&flags.json, "json", false, "print the resolution as JSON")
	cmd.Flags().IntVar(&flags.workers, "workers", client.DefaultWorkers, "references resolved concurrently")
	return cmd
}

func writeSelected(w io.Writer, outcomes []client.Outcome) error {
	for _, o := range outcomes {
		if o.Resolution == nil {
			continue
		}
		for _, entry := range o.Resolution.Entries {
			fmt.Fprintf(w, "# %s\n", entryTitle(entry))
			for _, f := range entry.Selected {
				fmt.Fprintln(w, f.URL)
			}
		}
	}
	return nil
}

func writeFormatTables(w io.Writer, outcomes []client.Outcome) error {
	for _, o := range outcomes {
		if o.Resolution == nil {
			continue
		}
		for _, entry := range o.Resolution.Entries {
			fmt.Fprintf(w, "[%s] %s\n", entry.Extractor, entryTitle(entry))
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEXT\tRESOLUTION\tFPS\tTBR\tPROTO\tVCODEC\tACODEC")
			for _, f := range client.Sort(entry.Result.Formats) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					f.FormatID, dash(f.Ext), resolution(f), number(f.FPS), number(f.Bitrate()),
					dash(string(f.Protocol)), dash(f.VideoCodec), dash(f.AudioCodec))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

type jsonFormat struct {
	FormatID   string  `json:"format_id"`
	URL        string  `json:"url"`
	Protocol   string  `json:"protocol,omitempty"`
	Ext        string  `json:"ext,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	FPS        float64 `json:"fps,omitempty"`
	TBR        float64 `json:"tbr,omitempty"`
	VideoCodec string  `json:"vcodec,omitempty"`
	AudioCodec string  `json:"acodec,omitempty"`
	Language   string  `json:"language,omitempty"`
	IsLive     bool    `json:"is_live,omitempty"`
}

type jsonEntry struct {
	ID        string       `json:"id,omitempty"`
	Title     string       `json:"title,omitempty"`
	Extractor string       `json:"extractor,omitempty"`
	Reference string       `json:"reference,omitempty"`
	Chain     []string     `json:"chain,omitempty"`
	Formats   []jsonFormat `json:"formats"`
	Selected  []jsonFormat `json:"selected,omitempty"`
}

type jsonFailure struct {
	Reference string   `json:"reference,omitempty"`
	Chain     []string `json:"chain,omitempty"`
	Error     string   `json:"error"`
}

type jsonOutcome struct {
	Reference string        `json:"reference"`
	RequestID string        `json:"request_id,omitempty"`
	Error     string        `json:"error,omitempty"`
	Category  string        `json:"category,omitempty"`
	Entries   []jsonEntry   `json:"entries,omitempty"`
	Failures  []jsonFailure `json:"failures,omitempty"`
	Warnings  []string      `json:"warnings,omitempty"`
}

func writeJSON(w io.Writer, outcomes []client.Outcome) error {
	out := make([]jsonOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		item := jsonOutcome{Reference: o.Reference}
		if o.Err != nil {
			item.Error = o.Err.Error()
			item.Category = string(client.ClassifyError(o.Err))
		}
		if res := o.Resolution; res != nil {
			item.RequestID = res.RequestID
			item.Warnings = res.Warnings
			for _, entry := range res.Entries {
				je := jsonEntry{
					ID:        entry.Result.Metadata.ID,
					Title:     entry.Result.Metadata.Title,
					Extractor: entry.Extractor,
					Reference: entry.Reference,
					Chain:     entry.Chain,
					Formats:   toJSONFormats(entry.Result.Formats),
					Selected:  toJSONFormats(entry.Selected),
				}
				item.Entries = append(item.Entries, je)
			}
			for _, f := range res.Failures {
				item.Failures = append(item.Failures, jsonFailure{Reference: f.Reference, Chain: f.Chain, Error: f.Err.Error()})
			}
		}
		out = append(out, item)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func toJSONFormats(formats []client.Format) []jsonFormat {
	out := make([]jsonFormat, len(formats))
	for i, f := range formats {
		out[i] = jsonFormat{
			FormatID:   f.FormatID,
			URL:        f.URL,
			Protocol:   string(f.Protocol),
			Ext:        f.Ext,
			Width:      f.Width,
			Height:     f.Height,
			FPS:        f.FPS,
			TBR:        f.Bitrate(),
			VideoCodec: f.VideoCodec,
			AudioCodec: f.AudioCodec,
			Language:   f.Language,
			IsLive:     f.IsLive,
		}
	}
	return out
}

func entryTitle(entry client.Entry) string {
	meta := entry.Result.Metadata
	for _, v := range []string{meta.Title, meta.ID, entry.Reference} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return "(untitled)"
}

func resolution(f client.Format) string {
	switch {
	case !f.HasVideo():
		return "audio only"
	case f.Width > 0 && f.Height > 0:
		return fmt.Sprintf("%dx%d", f.Width, f.Height)
	case f.Height > 0:
		return fmt.Sprintf("%dp", f.Height)
	}
	return "-"
}

func number(v float64) string {
	if v <= 0 {
		return "-"
	}
	return fmt.Sprintf("%g", v)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
