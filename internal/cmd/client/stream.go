package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewSnapshotCommand constructs the `snapshot` command.
func NewSnapshotCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print the latest stored price update",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, baseURL()+"/price", nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("snapshot: %s: %s", resp.Status, strings.TrimSpace(string(body)))
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		},
	}
}

// NewTailCommand constructs the `tail` command, an SSE client for /sse.
func NewTailCommand(baseURL BaseURLFunc) *cobra.Command {
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Stream live price updates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			filter, _ := cmd.Flags().GetString("filter")
			raw, _ := cmd.Flags().GetBool("raw")

			q := url.Values{}
			if filter != "" {
				q.Set("filter", filter)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			target := baseURL() + "/sse"
			if len(q) > 0 {
				target += "?" + q.Encode()
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, target, nil)
			if err != nil {
				return err
			}
			req.Header.Set("Accept", "text/event-stream")
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("tail: %s: %s", resp.Status, strings.TrimSpace(string(body)))
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			seen := 0
			err = readEvents(resp.Body, func(ev sseEvent) error {
				if raw {
					_, _ = fmt.Fprintln(out, ev.Data)
				} else {
					_ = enc.Encode(decodedEvent(ev.ID, []byte(ev.Data)))
				}
				seen++
				if limit > 0 && seen >= limit {
					return errStop
				}
				return nil
			})
			if err == errStop || cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	tailCmd.Flags().Int("limit", 0, "Stop after N updates (0 = infinite)")
	tailCmd.Flags().String("filter", "", "CEL filter over `json` (server-side)")
	tailCmd.Flags().Bool("raw", false, "Print event data only")
	return tailCmd
}

type sseEvent struct {
	ID   string
	Data string
}

// readEvents parses an SSE stream, calling fn for each event that carries data.
// Comments and retry hints are skipped.
func readEvents(r io.Reader, fn func(sseEvent) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	var ev sseEvent
	var data []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if len(data) > 0 {
				ev.Data = strings.Join(data, "\n")
				if err := fn(ev); err != nil {
					return err
				}
			}
			ev, data = sseEvent{}, nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			ev.ID = value
		case "data":
			data = append(data, value)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}
