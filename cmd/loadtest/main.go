package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	gateway := flag.String("gateway", "http://gateway:8000", "gateway base URL")
	concurrency := flag.Int("concurrency", 10, "number of concurrent candidates")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	turns := flag.Int("turns", 4, "answers per interview before stopping")
	role := flag.String("role", "Backend Engineer", "role to interview for")
	flag.Parse()

	fmt.Printf("Load test: %d concurrent interviews for %s\n", *concurrency, *duration)
	fmt.Printf("Gateway: %s | Turns: %d\n\n", *gateway, *turns)

	client := &http.Client{Timeout: 2 * time.Minute}
	var mu sync.Mutex
	var results []interviewResult
	var wg sync.WaitGroup

	deadline := time.Now().Add(*duration)

	for range *concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for time.Now().Before(deadline) {
				r := runInterview(client, *gateway, *role, *turns)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	printSummary(results)
}

type interviewResult struct {
	success   bool
	createMs  float64
	turnMs    []float64
	resultsMs float64
	err       string
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

var answers = []string{
	"yes",
	"I built some services",
	"I spent four years designing payment APIs in Go with Postgres and Kafka behind them.",
	"Mostly debugging production incidents and writing runbooks for the on-call rotation.",
	"sure",
}

func runInterview(client *http.Client, gateway, role string, turns int) interviewResult {
	var res interviewResult

	start := time.Now()
	id, err := createSession(client, gateway, role)
	if err != nil {
		res.err = fmt.Sprintf("create: %v", err)
		return res
	}
	res.createMs = msSince(start)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(gateway, "/ws/"+id), nil)
	if err != nil {
		res.err = fmt.Sprintf("dial: %v", err)
		return res
	}
	defer conn.Close()

	if _, err = waitFor(conn, "interviewer_audio"); err != nil {
		res.err = fmt.Sprintf("intro: %v", err)
		return res
	}

	for range turns {
		sent := time.Now()
		if err = sendJSON(conn, "candidate_text", map[string]string{"text": answers[rand.Intn(len(answers))]}); err != nil {
			res.err = fmt.Sprintf("send answer: %v", err)
			return res
		}
		ev, err := waitFor(conn, "interviewer_audio", "status")
		if err != nil {
			res.err = fmt.Sprintf("turn: %v", err)
			return res
		}
		res.turnMs = append(res.turnMs, msSince(sent))
		if ev.Type == "status" {
			break
		}
	}

	sendJSON(conn, "control", map[string]string{"action": "stop"})
	conn.Close()

	start = time.Now()
	if err = waitForResults(client, gateway, id, time.Minute); err != nil {
		res.err = fmt.Sprintf("results: %v", err)
		return res
	}
	res.resultsMs = msSince(start)
	res.success = true
	return res
}

func createSession(client *http.Client, gateway, role string) (string, error) {
	body, _ := json.Marshal(map[string]string{"role": role, "difficulty": "mid", "domain": "loadtest"})
	resp, err := client.Post(gateway+"/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func waitForResults(client *http.Client, gateway, id string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(gateway + "/results/" + id)
		if err != nil {
			return err
		}
		var out struct {
			Strengths string `json:"strengths"`
		}
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			return err
		}
		if out.Strengths != "Pending" {
			return nil
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("still pending after %s", timeout)
}

func sendJSON(conn *websocket.Conn, typ string, data any) error {
	return conn.WriteJSON(map[string]any{"type": typ, "data": data})
}

// waitFor reads envelopes until one of the given types arrives.
func waitFor(conn *websocket.Conn, types ...string) (envelope, error) {
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	for {
		var ev envelope
		if err := conn.ReadJSON(&ev); err != nil {
			return envelope{}, err
		}
		for _, t := range types {
			if ev.Type == t {
				return ev, nil
			}
		}
	}
}

func wsURL(base, path string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + path
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = path
	return u.String()
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}

func printSummary(results []interviewResult) {
	var succeeded, failed int
	var createAll, turnAll, resultsAll []float64
	errs := map[string]int{}

	for _, r := range results {
		if !r.success {
			failed++
			errs[strings.SplitN(r.err, ":", 2)[0]]++
			continue
		}
		succeeded++
		createAll = append(createAll, r.createMs)
		turnAll = append(turnAll, r.turnMs...)
		resultsAll = append(resultsAll, r.resultsMs)
	}

	fmt.Printf("\n=== Load Test Results ===\n")
	fmt.Printf("Interviews completed: %d\n", succeeded)
	fmt.Printf("Interviews failed:    %d\n", failed)
	for stage, n := range errs {
		fmt.Printf("  %-8s %d\n", stage, n)
	}

	if len(createAll) == 0 {
		fmt.Println("No successful interviews to report metrics")
		return
	}

	fmt.Printf("\n%-7s %8s %8s %8s\n", "Stage", "p50", "p95", "p99")
	fmt.Printf("%-7s %8.0fms %8.0fms %8.0fms\n", "Create", percentile(createAll, 50), percentile(createAll, 95), percentile(createAll, 99))
	fmt.Printf("%-7s %8.0fms %8.0fms %8.0fms\n", "Turn", percentile(turnAll, 50), percentile(turnAll, 95), percentile(turnAll, 99))
	fmt.Printf("%-7s %8.0fms %8.0fms %8.0fms\n", "Results", percentile(resultsAll, 50), percentile(resultsAll, 95), percentile(resultsAll, 99))
}

func percentile(data []float64, pct float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sort.Float64s(data)
	idx := int(math.Ceil(pct/100*float64(len(data)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(data) {
		idx = len(data) - 1
	}
	return data[idx]
}
