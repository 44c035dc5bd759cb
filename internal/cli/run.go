package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

const defaultPollInterval = 2 * time.Second

// NewRunCmd создаёт команду запуска pipeline в режиме запрос/ответ.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline and wait for the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			res, err := client.RunPipeline(cmd.Context())
			if err != nil {
				return err
			}

			out.Line(res.Message, res)

			if !res.Succeeded() {
				return fmt.Errorf("%w: HTTP %d", ErrRunFailed, res.StatusCode)
			}
			return nil
		},
	}
}

// NewSyncCmd создаёт команду фонового запуска.
func NewSyncCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var wait bool
	var interval time.Duration
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Start the pipeline in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tr, err := client.TriggerSync(cmd.Context())
			if err != nil {
				return err
			}

			if !wait {
				out.Print(
					[]string{"STATUS", "RUN_ID", "COALESCED", "LINK"},
					[][]string{{tr.Message, tr.RunID, strconv.FormatBool(tr.Coalesced), tr.Link}},
					tr,
				)
				return nil
			}

			if !out.IsJSON() {
				out.Success(fmt.Sprintf("Sync %s started, waiting...", tr.RunID))
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			st, err := client.WaitTerminal(ctx, interval)
			if err != nil {
				return err
			}

			printStatus(out, st)

			if st.Status != StatusCompleted {
				return ErrRunFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the run reaches a terminal state")
	cmd.Flags().DurationVar(&interval, "interval", defaultPollInterval, "Status polling interval with --wait")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up waiting after this duration (0 = no limit)")

	return cmd
}

// NewStatusCmd создаёт команду вывода статуса.
func NewStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the last background run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := clientFn().Status(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(outputFn(), st)
			return nil
		},
	}
}

func printStatus(out *Output, st *StatusResponse) {
	out.Print(
		[]string{"STATUS", "RUN_ID", "STARTED", "FINISHED"},
		[][]string{{st.Status, dash(st.RunID), dash(st.StartedAt), dash(st.FinishedAt)}},
		st,
	)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
