package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/interview-gateway/internal/taskgen"
)

func newGenerateTasksCmd(opts *rootOptions) *cobra.Command {
	var (
		vacancy string
		file    string
		pretty  bool
	)

	cmd := &cobra.Command{
		Use:   "generate-tasks",
		Short: "Run the task generator once and print its JSON",
		Long: `Run the configured task generator for a single vacancy and print the
resulting document to stdout. The vacancy is taken from --vacancy or read
from --file ("-" reads stdin).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readVacancy(cmd, vacancy, file)
			if err != nil {
				return err
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)

			bridge, err := taskgen.NewFileBridge(taskgen.Options{
				Command:    cfg.Generator.Command,
				Args:       cfg.Generator.Args,
				WorkDir:    cfg.Generator.WorkDir,
				InputFile:  cfg.Generator.InputFile,
				OutputFile: cfg.Generator.OutputFile,
				Timeout:    cfg.Generator.Timeout,
				Isolate:    cfg.Generator.Isolate,
				Logger:     logger,
			})
			if err != nil {
				return err
			}

			out, err := bridge.Generate(cmd.Context(), text)
			if err != nil {
				return err
			}

			if pretty {
				var buf bytes.Buffer
				if err := json.Indent(&buf, out, "", "  "); err == nil {
					out = buf.Bytes()
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().StringVar(&vacancy, "vacancy", "", "Vacancy description")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the vacancy from a file")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the JSON output")
	cmd.MarkFlagsMutuallyExclusive("vacancy", "file")
	return cmd
}

func readVacancy(cmd *cobra.Command, vacancy, file string) (string, error) {
	switch {
	case vacancy != "":
		return vacancy, nil
	case file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read vacancy from stdin: %w", err)
		}
		return string(data), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read vacancy file: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("one of --vacancy or --file is required")
	}
}
