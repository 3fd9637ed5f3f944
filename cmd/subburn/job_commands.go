package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"subburn/internal/api"
	"subburn/internal/client"
	"subburn/internal/config"
)

// jobListColumns is the shape shared by `jobs list` and `history`.
var jobListColumns = []tableColumn{
	{title: "ID"},
	{title: "State"},
	{title: "Input"},
	{title: "Submitted"},
	{title: "Error"},
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var text string
	var cuesFile string
	var langHint string
	var outputExt string

	cmd := &cobra.Command{
		Use:   "submit <video-path>",
		Short: "Submit a video for subtitle burn-in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve input path: %w", err)
			}

			req := api.SubmitRequest{
				InputPath:    inputPath,
				Text:         text,
				LanguageHint: langHint,
				OutputExt:    outputExt,
			}
			if cuesFile != "" {
				cues, err := loadCueFile(cuesFile)
				if err != nil {
					return err
				}
				req.Cues = cues
			}
			if strings.TrimSpace(req.Text) == "" && len(req.Cues) == 0 {
				return fmt.Errorf("provide overlay text with --text or timed cues with --cues")
			}

			return ctx.withClient(func(cl *client.Client) error {
				resp, err := cl.Submit(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s (%s)\n", resp.ID, resp.State)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "Overlay text burned across the full video")
	cmd.Flags().StringVar(&cuesFile, "cues", "", "Path to a JSON file of timed cues ({start_ms, end_ms, text})")
	cmd.Flags().StringVar(&langHint, "lang", "", "BCP-47 language hint for font selection")
	cmd.Flags().StringVar(&outputExt, "output-ext", "", "Output container extension (default mp4)")
	return cmd
}

func loadCueFile(path string) ([]api.CueView, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve cue file: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read cue file: %w", err)
	}
	var cues []api.CueView
	if err := json.Unmarshal(data, &cues); err != nil {
		return nil, fmt.Errorf("parse cue file %s: %w", expanded, err)
	}
	return cues, nil
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect tracked render jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listJobs(cmd, ctx)
		},
	}

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all tracked jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listJobs(cmd, ctx)
		},
	})

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				view, err := cl.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printJobDetail(cmd, view)
				return nil
			})
		},
	})

	return jobsCmd
}

func listJobs(cmd *cobra.Command, ctx *commandContext) error {
	return ctx.withClient(func(cl *client.Client) error {
		jobs, err := cl.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(jobs) == 0 {
			fmt.Fprintln(out, "No jobs tracked")
			return nil
		}
		rows := make([][]string, 0, len(jobs))
		for _, view := range jobs {
			rows = append(rows, []string{
				view.ID,
				view.State,
				filepath.Base(view.InputPath),
				view.SubmittedAt.Local().Format(time.RFC3339),
				jobErrorSummary(view),
			})
		}
		fmt.Fprintln(out, renderTable(jobListColumns, rows))
		return nil
	})
}

func printJobDetail(cmd *cobra.Command, view api.JobView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:        %s\n", view.ID)
	fmt.Fprintf(out, "State:     %s\n", view.State)
	fmt.Fprintf(out, "Input:     %s\n", view.InputPath)
	if view.LanguageHint != "" {
		fmt.Fprintf(out, "Language:  %s\n", view.LanguageHint)
	}
	fmt.Fprintf(out, "Submitted: %s\n", view.SubmittedAt.Local().Format(time.RFC3339))
	if view.StartedAt != nil {
		fmt.Fprintf(out, "Started:   %s\n", view.StartedAt.Local().Format(time.RFC3339))
	}
	if view.FinishedAt != nil {
		fmt.Fprintf(out, "Finished:  %s\n", view.FinishedAt.Local().Format(time.RFC3339))
	}
	if view.ResultURL != "" {
		fmt.Fprintf(out, "Result:    %s\n", view.ResultURL)
	}
	if view.Error != nil {
		fmt.Fprintf(out, "Error:     %s: %s\n", view.Error.Kind, view.Error.Message)
		if view.Error.ExitCode != 0 {
			fmt.Fprintf(out, "Exit code: %d\n", view.Error.ExitCode)
		}
		if view.Error.StderrExcerpt != "" {
			fmt.Fprintf(out, "Stderr:\n%s\n", view.Error.StderrExcerpt)
		}
	}
}

func jobErrorSummary(view api.JobView) string {
	if view.Error == nil {
		return ""
	}
	summary := view.Error.Kind
	if view.Error.Message != "" {
		summary += ": " + view.Error.Message
	}
	const limit = 60
	if len(summary) > limit {
		summary = summary[:limit] + "..."
	}
	return summary
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				resp, err := cl.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s is now %s\n", resp.ID, resp.State)
				return nil
			})
		},
	}
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "fetch <job-id>",
		Short: "Download a finished render artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return ctx.withClient(func(cl *client.Client) error {
				target := strings.TrimSpace(outputPath)
				if target == "" {
					target = id + ".mp4"
				}
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve output path: %w", err)
				}

				f, err := os.Create(expanded)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				name, fetchErr := cl.FetchResult(cmd.Context(), id, f)
				closeErr := f.Close()
				if fetchErr != nil {
					_ = os.Remove(expanded)
					return fetchErr
				}
				if closeErr != nil {
					return fmt.Errorf("close output file: %w", closeErr)
				}

				if name != "" && strings.TrimSpace(outputPath) == "" {
					renamed := filepath.Join(filepath.Dir(expanded), filepath.Base(name))
					if renamed != expanded {
						if err := os.Rename(expanded, renamed); err == nil {
							expanded = renamed
						}
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", expanded)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination path for the artifact")
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled job history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				records, err := cl.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No history recorded")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					errSummary := rec.ErrorKind
					if rec.ErrorMessage != "" {
						errSummary = rec.ErrorKind + ": " + rec.ErrorMessage
					}
					rows = append(rows, []string{
						rec.ID,
						rec.State,
						filepath.Base(rec.InputPath),
						rec.SubmittedAt.Local().Format(time.RFC3339),
						errSummary,
					})
				}
				fmt.Fprintln(out, renderTable(jobListColumns, rows))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum records to return")
	return cmd
}
