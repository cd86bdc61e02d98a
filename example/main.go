package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mfenwick/stakeout"
	"github.com/mfenwick/stakeout/channel"
)

// startMockTarget serves a JSON document whose status flips between
// "sold_out" and "available" every few polls, so the watcher has
// transitions to report.
func startMockTarget(addr string) {
	var hits atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/product", func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		status := "sold_out"
		if (n/3)%2 == 1 {
			status = "available"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"status": status, "checks": n},
		})
	})

	go http.ListenAndServe(addr, mux)
}

// startWebhookReceiver prints every notification it receives.
func startWebhookReceiver(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/notify", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fmt.Printf("\n🔔 notification received: %s\n\n", body)
		w.WriteHeader(http.StatusOK)
	})

	go http.ListenAndServe(addr, mux)
}

func main() {
	startMockTarget(":9990")
	startWebhookReceiver(":9991")
	time.Sleep(100 * time.Millisecond)

	query, err := stakeout.NewQuery(stakeout.ModeJSON, "available",
		stakeout.WithLocator("$.data.status"),
	)
	if err != nil {
		slog.Error("failed to create query", "error", err)
		os.Exit(1)
	}

	hook, err := channel.NewWebhook("http://localhost:9991/notify",
		channel.WithWebhookName("demo-hook"),
	)
	if err != nil {
		slog.Error("failed to create webhook channel", "error", err)
		os.Exit(1)
	}

	sk, err := stakeout.New(
		stakeout.WithURL("http://localhost:9990/product"),
		stakeout.WithQuery(query),
		stakeout.WithInterval(2*time.Second),
		stakeout.WithRequestDelay(0),
		stakeout.WithSender(hook),
		stakeout.WithCheckCallback(func(cs stakeout.CheckStatus) {
			if cs.Err != nil {
				fmt.Printf("check failed: %v\n", cs.Err)
				return
			}
			fmt.Printf("checked %s: found=%v value=%q matched=%v (%dms)\n",
				cs.URL, cs.Result.Found, cs.Result.ObservedValue,
				cs.Result.Matched, cs.Latency.Milliseconds())
		}),
	)
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("watching http://localhost:9990/product for status=available (Ctrl+C to stop)")
	if err := sk.Start(ctx); err != nil {
		slog.Error("watcher stopped", "error", err)
		os.Exit(1)
	}
}
