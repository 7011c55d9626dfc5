package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pederhe/rockets/pkg/log"
	"github.com/pederhe/rockets/pkg/rockets/client"
	"github.com/pederhe/rockets/pkg/rockets/common"
	"github.com/pederhe/rockets/pkg/utils"
	"go.uber.org/zap"
)

var errInterrupted = errors.New("interrupted")

// runner executes commands on one blocking client. The client loop is
// driven on the calling goroutine for the duration of each call.
type runner struct {
	client  *client.Client
	timeout time.Duration
	out     io.Writer
}

// batchEntry is one element of a batch given on the command line
type batchEntry struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
	Notify bool   `json:"notify,omitempty"`
}

// parseParams decodes a params argument. Text that is not JSON is sent as a
// single string.
func parseParams(args []string) any {
	if len(args) == 0 {
		return nil
	}
	text := strings.Join(args, " ")
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text
	}
	return v
}

// parseBatch builds a batch from a JSON array of batch entries
func parseBatch(text string) (common.Batch, error) {
	var entries []batchEntry
	if err := json.Unmarshal([]byte(text), &entries); err != nil {
		return nil, fmt.Errorf("batch must be a JSON array: %w", err)
	}

	batch := make(common.Batch, 0, len(entries))
	for i, e := range entries {
		if e.Method == "" {
			return nil, fmt.Errorf("batch entry %d has no method", i)
		}
		if e.Notify {
			batch = append(batch, common.NewNotification(e.Method, e.Params))
		} else {
			batch = append(batch, common.NewRequest(e.Method, common.NormalizeParams(e.Params)))
		}
	}
	return batch, nil
}

func (r *runner) execute(command string, args []string) error {
	switch command {
	case "notify":
		if len(args) == 0 {
			return fmt.Errorf("usage: notify <method> [params]")
		}
		if err := r.client.Notify(args[0], parseParams(args[1:])); err != nil {
			return err
		}
		fmt.Fprintln(r.out, utils.ColoredText("sent", utils.ColorGreen))
		return nil
	case "request":
		if len(args) == 0 {
			return fmt.Errorf("usage: request <method> [params]")
		}
		return r.request(args[0], parseParams(args[1:]))
	case "batch":
		if len(args) == 0 {
			return fmt.Errorf("usage: batch <json-array>")
		}
		batch, err := parseBatch(strings.Join(args, " "))
		if err != nil {
			return err
		}
		return r.batch(batch)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (r *runner) request(method string, params any) error {
	task := r.client.Async().AsyncRequest(context.Background(), method, params)
	if err := r.wait(task); err != nil {
		return err
	}

	resp, err := task.Response()
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, utils.PrettyJSON(resp.Result))
	return nil
}

func (r *runner) batch(batch common.Batch) error {
	task, err := r.client.Async().AsyncBatch(context.Background(), batch)
	if err != nil {
		return err
	}
	if err := r.wait(task); err != nil {
		return err
	}

	responses, err := task.Responses()
	if err != nil {
		return err
	}
	if len(responses) == 0 {
		fmt.Fprintln(r.out, utils.ColoredText("sent", utils.ColorGreen))
		return nil
	}
	for _, resp := range responses {
		if err := resp.Err(); err != nil {
			fmt.Fprintf(r.out, "%s %s\n", resp.ID, utils.ColoredText(err.Error(), utils.ColorRed))
			continue
		}
		fmt.Fprintf(r.out, "%s %s\n", resp.ID, utils.PrettyJSON(resp.Result))
	}
	return nil
}

// wait drives the client loop until task completes, printing its progress.
// On timeout or Ctrl+C the task is cancelled, which notifies the server.
func (r *runner) wait(task *client.RequestTask) error {
	task.AddProgressCallback(func(p common.Progress) {
		fmt.Fprintln(r.out, utils.ColoredText(utils.ProgressBar(p.Operation, p.Amount), utils.ColorCyan))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	err := r.client.Async().Loop().RunUntil(ctx, task.Done())
	if err == nil {
		return nil
	}

	task.Cancel()
	<-task.Done()
	log.LogDebug("request abandoned", zap.Error(err))
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return client.ErrResponseTimeout
	case errors.Is(err, context.Canceled):
		return errInterrupted
	}
	return err
}

// listen drives the client loop for d, or until Ctrl+C when d is zero, so
// that subscriptions receive server notifications
func (r *runner) listen(d time.Duration) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	_ = r.client.Async().Loop().RunUntil(ctx, nil)
}
