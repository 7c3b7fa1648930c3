package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rzbill/pricerelay/internal/bus"
)

// NewPublishCommand constructs the `publish` command. It writes one raw
// payload to the configured bus subject.
func NewPublishCommand(cfgFn ConfigFunc) *cobra.Command {
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a raw JSON payload to the bus subject",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, _ := cmd.Flags().GetString("data")
			subject, _ := cmd.Flags().GetString("subject")
			noCheck, _ := cmd.Flags().GetBool("no-check")

			cfg, err := cfgFn()
			if err != nil {
				return err
			}
			if subject == "" {
				subject = cfg.Bus.Subject
			}

			payload := []byte(data)
			if data == "" {
				payload, err = io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1<<20))
				if err != nil {
					return err
				}
				payload = []byte(strings.TrimSpace(string(payload)))
			}
			if len(payload) == 0 {
				return errors.New("publish: empty payload; use --data or stdin")
			}
			if !noCheck && !json.Valid(payload) {
				return errors.New("publish: payload is not valid JSON (use --no-check to send anyway)")
			}

			b, err := bus.Open(cmd.Context(), bus.Options{
				Driver:       cfg.Bus.Driver,
				URL:          cfg.Bus.URL,
				RedisAddr:    cfg.Bus.RedisAddr,
				KafkaBrokers: cfg.Bus.KafkaBrokers,
				Name:         "pricerelay-cli",
			})
			if err != nil {
				return err
			}
			defer b.Close()
			if err := b.Publish(cmd.Context(), subject, payload); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "published %d bytes to %s\n", len(payload), subject)
			return nil
		},
	}
	publishCmd.Flags().String("data", "", "Payload (reads stdin when empty)")
	publishCmd.Flags().String("subject", "", "Subject override (default from config)")
	publishCmd.Flags().Bool("no-check", false, "Skip JSON validation")
	return publishCmd
}
