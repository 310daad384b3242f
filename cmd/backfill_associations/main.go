package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/yungbote/topicpulse-backend/internal/app"
	"github.com/yungbote/topicpulse-backend/internal/backfill"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/jobs/handlers"
)

func main() {
	os.Exit(run())
}

// kindNames lists the values -kind accepts.
func kindNames() string {
	names := make([]string, 0, len(content.AllKinds()))
	for _, k := range content.AllKinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

// parseKind maps an empty flag to every kind.
func parseKind(s string) (content.Kind, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	k, ok := content.ParseKind(s)
	if !ok {
		return "", fmt.Errorf("unknown kind %q (want one of %s)", s, kindNames())
	}
	return k, nil
}

func run() int {
	var (
		batchSize int
		startID   uint64
		endID     uint64
		kind      string
		retag     bool
		enqueue   bool
	)
	flag.IntVar(&batchSize, "batch-size", 0, "items per batch (default BACKFILL_BATCH_SIZE)")
	flag.Uint64Var(&startID, "start-id", 0, "first content id to process")
	flag.Uint64Var(&endID, "end-id", 0, "last content id to process (0 = no bound)")
	flag.StringVar(&kind, "kind", "", "one of "+kindNames()+" (default: every kind)")
	flag.BoolVar(&retag, "retag", false, "re-derive tag lists from text before syncing")
	flag.BoolVar(&enqueue, "enqueue", false, "submit a backfill_all job instead of running in-process")
	flag.Parse()

	k, err := parseKind(kind)
	if err != nil {
		fmt.Println(err)
		return 2
	}
	if endID > 0 && startID > endID {
		fmt.Println("start-id must not exceed end-id")
		return 2
	}

	a, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		return 1
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if enqueue {
		payload := map[string]any{"retag": fmt.Sprint(retag)}
		if batchSize > 0 {
			payload["batch_size"] = batchSize
		}
		if startID > 0 {
			payload["start_id"] = startID
		}
		if endID > 0 {
			payload["end_id"] = endID
		}
		if k != "" {
			payload["kind"] = string(k)
		}
		job, created, err := a.Services.JobService.Enqueue(ctx, handlers.TypeBackfillAll, payload)
		if err != nil {
			fmt.Printf("enqueue failed: %v\n", err)
			return 1
		}
		if !created {
			fmt.Printf("backfill already queued or running: job_id=%s status=%s\n", job.ID, job.Status)
			return 0
		}
		fmt.Printf("enqueued backfill_all job_id=%s\n", job.ID)
		return 0
	}

	sum, err := a.Services.Backfill.Run(ctx, backfill.Params{
		BatchSize: batchSize,
		StartID:   startID,
		EndID:     endID,
		Kind:      k,
		Retag:     retag,
	}, nil)
	out, _ := json.MarshalIndent(sum, "", "  ")
	fmt.Println(string(out))
	if err != nil {
		fmt.Printf("backfill stopped early: %v\n", err)
		return 1
	}
	return 0
}
