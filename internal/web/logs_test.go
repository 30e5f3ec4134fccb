package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestLogBuffer_SplitsChunksIntoLines(t *testing.T) {
	b := NewLogBuffer(10)

	if _, err := b.Write([]byte("first line\nsecond ")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := b.Write([]byte("half\nthird\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	lines, dropped := b.Snapshot(0)
	if dropped != 0 {
		t.Fatalf("dropped=%d", dropped)
	}
	want := []string{"first line", "second half", "third"}
	if len(lines) != len(want) {
		t.Fatalf("lines=%v", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("lines[%d]=%q want %q", i, lines[i], want[i])
		}
	}
}

func TestLogBuffer_HoldsPartialLine(t *testing.T) {
	b := NewLogBuffer(10)

	if _, err := b.Write([]byte("not finished yet")); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines, _ := b.Snapshot(0)
	if len(lines) != 0 {
		t.Fatalf("partial leaked: %v", lines)
	}

	if _, err := b.Write([]byte(", now it is\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines, _ = b.Snapshot(0)
	if len(lines) != 1 || lines[0] != "not finished yet, now it is" {
		t.Fatalf("lines=%v", lines)
	}
}

func TestLogBuffer_DropsOldestPastMax(t *testing.T) {
	b := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(b, "line %d\n", i)
	}

	lines, dropped := b.Snapshot(0)
	if dropped != 2 {
		t.Fatalf("dropped=%d want 2", dropped)
	}
	if len(lines) != 3 || lines[0] != "line 2" || lines[2] != "line 4" {
		t.Fatalf("lines=%v", lines)
	}
}

func TestLogBuffer_SnapshotTailsNewest(t *testing.T) {
	b := NewLogBuffer(100)
	for i := 0; i < 10; i++ {
		fmt.Fprintf(b, "line %d\n", i)
	}

	lines, _ := b.Snapshot(2)
	if len(lines) != 2 || lines[0] != "line 8" || lines[1] != "line 9" {
		t.Fatalf("lines=%v", lines)
	}
}

func TestAPILogs(t *testing.T) {
	buf := NewLogBuffer(100)
	fmt.Fprintf(buf, "sense: imu ready\n")
	fmt.Fprintf(buf, "control: run started\n")

	ts, _ := newTestServer(t, Options{HardwareOK: true, Logs: buf})

	resp, err := http.Get(ts.URL + "/api/logs?tail=1")
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}

	var out logsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(out.Lines) != 1 || out.Lines[0] != "control: run started" {
		t.Fatalf("lines=%v", out.Lines)
	}
}

func TestAPILogs_TextFormat(t *testing.T) {
	buf := NewLogBuffer(100)
	fmt.Fprintf(buf, "one\ntwo\n")

	ts, _ := newTestServer(t, Options{HardwareOK: true, Logs: buf})

	resp, err := http.Get(ts.URL + "/api/logs?format=text")
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if got := string(body); got != "one\ntwo\n" {
		t.Fatalf("body=%q", got)
	}
}

func TestAPILogs_RejectsBadTail(t *testing.T) {
	buf := NewLogBuffer(100)
	ts, _ := newTestServer(t, Options{HardwareOK: true, Logs: buf})

	for _, q := range []string{"tail=0", "tail=9999", "tail=abc"} {
		resp, err := http.Get(ts.URL + "/api/logs?" + q)
		if err != nil {
			t.Fatalf("get logs: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status code=%d", q, resp.StatusCode)
		}
	}
}
