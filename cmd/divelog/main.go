// Command divelog prints a shore-side summary of an auv-ng dive log.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"auv-ng/internal/divelog"
)

func main() {
	var (
		dbPath    string
		sessionID string
		limit     int
	)
	flag.StringVar(&dbPath, "db", "./auv-divelog.sqlite", "Path to the dive log database")
	flag.StringVar(&sessionID, "session", "", "Print one session's event history instead of the summary")
	flag.IntVar(&limit, "n", 20, "How many recent sessions to list")
	flag.Parse()

	fi, err := os.Stat(dbPath)
	if err != nil {
		log.Fatalf("dive log not found: %v", err)
	}

	store, err := divelog.Open(dbPath)
	if err != nil {
		log.Fatalf("open dive log: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if sessionID != "" {
		err = printEvents(ctx, store, sessionID)
	} else {
		err = printSummary(ctx, store, dbPath, uint64(fi.Size()), limit)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func printSummary(ctx context.Context, store *divelog.Store, path string, size uint64, limit int) error {
	totals, err := store.Aggregate(ctx)
	if err != nil {
		return err
	}
	sessions, err := store.RecentSessions(ctx, limit)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", path, humanize.Bytes(size))
	fmt.Printf("%s sessions, %s ticks, %s overruns, %s emergency stops\n\n",
		humanize.Comma(int64(totals.Sessions)), humanize.Comma(int64(totals.Ticks)),
		humanize.Comma(int64(totals.Overruns)), humanize.Comma(int64(totals.EmergencyStops)))

	if len(sessions) == 0 {
		fmt.Println("no dives recorded")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED (UTC)\tWHEN\tDURATION\tTICKS\tOVERRUNS\tESTOPS\tREASON\tSESSION")
	for _, s := range sessions {
		dur := "open"
		reason := s.StopReason
		if s.StoppedUTC.IsZero() {
			// Open either because a dive is in progress or because the
			// daemon died before closing the session out.
			if reason == "" {
				reason = "-"
			}
		} else {
			dur = s.Duration().Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			s.StartedUTC.Format("2006-01-02 15:04:05"),
			humanize.RelTime(s.StartedUTC, now, "ago", "from now"),
			dur, s.Ticks, s.Overruns, s.EmergencyStops, reason, s.ID)
	}
	return w.Flush()
}

func printEvents(ctx context.Context, store *divelog.Store, id string) error {
	events, err := store.SessionEvents(ctx, id)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no events for session %s", id)
	}

	origin := events[0].At
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AT (UTC)\tELAPSED\tKIND\tDETAIL")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			ev.At.Format("15:04:05.000"),
			ev.At.Sub(origin).Round(time.Millisecond),
			ev.Kind, ev.Detail)
	}
	return w.Flush()
}
