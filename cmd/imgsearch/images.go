// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/sigil-dev/imgsearch/internal/gallery"
	"github.com/sigil-dev/imgsearch/internal/progress"
	"github.com/sigil-dev/imgsearch/internal/server"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/spf13/cobra"
)

// requestContext bounds a client call by --timeout.
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), timeout)
}

// render prints v as indented JSON under --json, or through text otherwise.
func render(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(cmd.OutOrStdout())
}

func printStatus(cmd *cobra.Command, body server.StatusBody) error {
	return render(cmd, body, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, body.Msg)
		return err
	})
}

func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load TABLE DIR",
		Short: "Index every image in a directory on the server host",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, _ := cmd.Flags().GetString("session")

			ctx, cancel := requestContext(cmd)
			defer cancel()

			var out struct {
				server.StatusBody
				Total int64 `json:"total"`
			}
			body := map[string]any{
				"table":      args[0],
				"source_dir": args[1],
				"cache_path": session,
			}
			// Unset leaves the choice to the server's load.recursive.
			if cmd.Flags().Changed("recursive") {
				body["recursive"], _ = cmd.Flags().GetBool("recursive")
			}
			if err := clientFromViper().postJSON(ctx, "/img/load", body, &out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s (%d images in table)\n", out.Msg, out.Total)
				return err
			})
		},
	}
	cmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	cmd.Flags().String("session", "", "progress session key (defaults to the table name)")
	return cmd
}

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload TABLE",
		Short: "Add one image from a local file or a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			rawURL, _ := cmd.Flags().GetString("url")
			destDir, _ := cmd.Flags().GetString("dest-dir")
			if (file == "") == (rawURL == "") {
				return imgerr.New(imgerr.CodeCLIInputInvalid, "exactly one of --file or --url is required")
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			var out struct {
				server.StatusBody
				ID string `json:"id"`
			}
			fields := map[string]string{"table": args[0], "url": rawURL, "dest_dir": destDir}
			if err := clientFromViper().postMultipart(ctx, "/img/upload", fields, file, &out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, out.ID)
				return err
			})
		},
	}
	cmd.Flags().StringP("file", "f", "", "local image file to upload")
	cmd.Flags().String("url", "", "image URL for the server to fetch")
	cmd.Flags().String("dest-dir", "", "server-side directory to store the image in")
	return cmd
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search TABLE IMAGE",
		Short: "Find the images closest to a local query image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			topK, _ := cmd.Flags().GetInt("top-k")
			if topK < 0 {
				return imgerr.Errorf(imgerr.CodeCLIInputInvalid, "--top-k must not be negative, got %d", topK)
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			fields := map[string]string{"table": args[0]}
			if topK > 0 {
				fields["top_k"] = strconv.Itoa(topK)
			}
			var matches []gallery.Match
			if err := clientFromViper().postMultipart(ctx, "/img/search", fields, args[1], &matches); err != nil {
				return err
			}
			return render(cmd, matches, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RANK\tDISTANCE\tID\tPATH")
				for i, m := range matches {
					fmt.Fprintf(tw, "%d\t%.4f\t%s\t%s\n", i+1, m.Distance, m.ID, m.Path)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntP("top-k", "k", 0, "number of results (0 uses the server default)")
	return cmd
}

func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count TABLE",
		Short: "Count the images in a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			var out struct {
				Table string `json:"table"`
				Count int64  `json:"count"`
			}
			if err := clientFromViper().postJSON(ctx, "/img/count", map[string]string{"table": args[0]}, &out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, out.Count)
				return err
			})
		},
	}
}

func newDropCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop TABLE",
		Short: "Drop a table from the vector index and the metadata store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return imgerr.Errorf(imgerr.CodeCLIInputInvalid, "dropping %q deletes every record; pass --yes to confirm", args[0])
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			var out server.StatusBody
			if err := clientFromViper().postJSON(ctx, "/img/drop", map[string]string{"table": args[0]}, &out); err != nil {
				return err
			}
			return printStatus(cmd, out)
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "confirm the drop")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete TABLE ID",
		Short: "Delete one image by id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			var out server.StatusBody
			path := "/img/delete/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1])
			if err := clientFromViper().deleteJSON(ctx, path, &out); err != nil {
				return err
			}
			return printStatus(cmd, out)
		},
	}
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list TABLE",
		Short: "List the images of a table page by page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, _ := cmd.Flags().GetInt("page")
			size, _ := cmd.Flags().GetInt("size")

			ctx, cancel := requestContext(cmd)
			defer cancel()

			q := url.Values{}
			q.Set("page", strconv.Itoa(page))
			q.Set("size", strconv.Itoa(size))
			var out gallery.Page
			if err := clientFromViper().getJSON(ctx, "/img/all/"+url.PathEscape(args[0]), q, &out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tPATH")
				for _, r := range out.Data {
					fmt.Fprintf(tw, "%s\t%s\n", r.ID, r.Path)
				}
				fmt.Fprintf(tw, "\npage %d of %d, %d images\n", out.CurrentPage, out.TotalPages, out.Total)
				return tw.Flush()
			})
		},
	}
	cmd.Flags().Int("page", 1, "1-based page number")
	cmd.Flags().Int("size", 10, "page size (1 to 100)")
	return cmd
}

func newProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress SESSION",
		Short: "Show the progress of a bulk load",
		Long:  "Show the progress of a bulk load. SESSION is the --session passed to load, or the table name.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			follow, _ := cmd.Flags().GetBool("follow")
			if follow {
				return followProgress(cmd, args[0])
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			var p progress.Progress
			if err := clientFromViper().getJSON(ctx, "/progress", url.Values{"cache_path": {args[0]}}, &p); err != nil {
				return err
			}
			return render(cmd, p, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%d/%d\n", p.Current, p.Total)
				return err
			})
		},
	}
	cmd.Flags().BoolP("follow", "F", false, "stream updates until the load completes")
	cmd.Flags().Duration("interval", 500*time.Millisecond, "server poll interval when following")
	return cmd
}

func followProgress(cmd *cobra.Command, session string) error {
	interval, _ := cmd.Flags().GetDuration("interval")
	q := url.Values{"cache_path": {session}, "interval": {interval.String()}}
	w := cmd.OutOrStdout()

	var streamErr error
	err := clientFromViper().stream(cmd.Context(), "/progress/stream", q, func(event, data string) bool {
		switch event {
		case "progress":
			var p progress.Progress
			if err := json.Unmarshal([]byte(data), &p); err != nil {
				streamErr = imgerr.Wrap(err, imgerr.CodeCLIResponseInvalid, "decoding progress event")
				return false
			}
			_, _ = fmt.Fprintf(w, "%d/%d\n", p.Current, p.Total)
			return true
		case "done":
			_, _ = fmt.Fprintln(w, "done")
			return false
		case "error":
			var body struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal([]byte(data), &body)
			streamErr = imgerr.Errorf(imgerr.CodeCLIRequestFailure, "progress stream: %s", body.Message)
			return false
		default:
			return true
		}
	})
	if err != nil {
		return err
	}
	return streamErr
}
