package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := newAPIClient(apiURL).Upload(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}
}

func newDocumentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List uploaded documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := newAPIClient(apiURL).Documents(cmd.Context())
			if err != nil {
				return err
			}
			return printDocuments(cmd.OutOrStdout(), entries)
		},
	}
}

func printDocuments(w io.Writer, entries []model.CatalogEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSIZE\tUPLOADED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", e.ID, e.Name, e.ContentType, e.Size, e.UploadedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func newDownloadCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a document by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmp, err := os.CreateTemp(".", ".extractiq-download-*")
			if err != nil {
				return err
			}
			defer os.Remove(tmp.Name())
			defer tmp.Close()

			name, err := newAPIClient(apiURL).Download(cmd.Context(), args[0], tmp)
			if err != nil {
				return err
			}
			if err := tmp.Close(); err != nil {
				return err
			}
			target := output
			if target == "" {
				target = name
			}
			if target == "" || target == "." {
				target = args[0]
			}
			if err := os.Rename(tmp.Name(), target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this path instead of the served file name")
	return cmd
}

func newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the document catalog as an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := newAPIClient(apiURL).Export(cmd.Context(), f); err != nil {
				f.Close()
				os.Remove(output)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "documents.xlsx", "Output path")
	return cmd
}

func newSchemasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "Manage extraction schemas",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List schemas",
			RunE: func(cmd *cobra.Command, args []string) error {
				list, err := newAPIClient(apiURL).Schemas(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), list)
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show one schema",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				schema, err := newAPIClient(apiURL).Schema(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), schema)
			},
		},
		&cobra.Command{
			Use:   "create <file.json>",
			Short: "Create a schema from a JSON definition",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				if !json.Valid(data) {
					return fmt.Errorf("%s is not valid JSON", args[0])
				}
				schema, err := newAPIClient(apiURL).CreateSchema(cmd.Context(), data)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), schema)
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a schema",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				msg, err := newAPIClient(apiURL).DeleteSchema(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			},
		},
	)
	return cmd
}

func newExtractCmd() *cobra.Command {
	var (
		text     string
		textFile string
		document string
		prompt   string
		schemaID string
		modelID  string
	)
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run an extraction over inline text, a local file or a stored document",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(apiURL)
			payload := extractPayload{Prompt: prompt, ModelID: modelID, FileName: document}

			switch {
			case document != "":
			case textFile != "":
				data, err := os.ReadFile(textFile)
				if err != nil {
					return err
				}
				payload.Text = string(data)
			case text != "":
				payload.Text = text
			default:
				return errors.New("one of --text, --file or --document is required")
			}

			if schemaID != "" {
				schema, err := client.Schema(cmd.Context(), schemaID)
				if err != nil {
					return fmt.Errorf("load schema %s: %w", schemaID, err)
				}
				if payload.Prompt == "" {
					payload.Prompt = schema.Prompt
				}
				payload.Examples = schema.Examples
			}
			if payload.Examples == nil {
				payload.Examples = []model.Example{}
			}

			result, err := client.Extract(cmd.Context(), payload)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Inline text to extract from")
	cmd.Flags().StringVar(&textFile, "file", "", "Local text file to extract from")
	cmd.Flags().StringVar(&document, "document", "", "File name of a stored document")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Extraction prompt (defaults to the schema prompt)")
	cmd.Flags().StringVar(&schemaID, "schema", "", "Schema id supplying prompt and examples")
	cmd.Flags().StringVar(&modelID, "model", "", "Model id (server default when empty)")
	cmd.MarkFlagsMutuallyExclusive("text", "file", "document")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
