package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// bonusRequest mirrors the admin bonus body
type bonusRequest struct {
	Amount        int64  `json:"amount"`
	Description   string `json:"description"`
	ExpiresInDays *int   `json:"expiresInDays,omitempty"`
}

// balanceResponse mirrors the balance endpoint
type balanceResponse struct {
	Total     int64 `json:"total"`
	Free      int64 `json:"free"`
	Purchased int64 `json:"purchased"`
}

type grantScenario struct {
	Name          string
	Amount        int64
	ExpiresInDays *int
}

type result struct {
	UserID       string
	Scenario     string
	Amount       int64
	Success      bool
	ResponseTime time.Duration
	Err          error
}

type stats struct {
	mu            sync.Mutex
	total         int
	succeeded     int
	failed        int
	responseTimes []time.Duration
	errorCounts   map[string]int
	scenarioCount map[string]int
	grantedByUser map[string]int64
}

func intPtr(v int) *int { return &v }

func main() {
	concurrency := flag.Int("c", 10, "Number of concurrent goroutines")
	totalRequests := flag.Int("n", 500, "Total number of grants to send")
	usersFlag := flag.String("u", "load-1,load-2,load-3", "Comma-separated user IDs to spread grants across")
	baseURL := flag.String("url", "http://localhost:8080", "Base URL for the API")
	adminID := flag.String("admin", "load-test", "X-Admin-ID header value")
	delayMs := flag.Int("delay", 0, "Delay between requests per worker in milliseconds")
	flag.Parse()

	var users []string
	for _, id := range strings.Split(*usersFlag, ",") {
		if id = strings.TrimSpace(id); id != "" {
			users = append(users, id)
		}
	}
	if len(users) == 0 {
		users = []string{"load-1"}
	}

	scenarios := []grantScenario{
		{Name: "small-7d", Amount: 5, ExpiresInDays: intPtr(7)},
		{Name: "medium-30d", Amount: 20, ExpiresInDays: intPtr(30)},
		{Name: "large-permanent", Amount: 50},
	}

	client := &http.Client{Timeout: 10 * time.Second}

	baseline := make(map[string]int64, len(users))
	for _, id := range users {
		b, err := fetchBalance(client, *baseURL, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read starting balance of %s: %v\n", id, err)
			os.Exit(1)
		}
		baseline[id] = b.Total
	}

	fmt.Printf("Granting across %d users: %v\n", len(users), users)
	fmt.Printf("Concurrency: %d, requests: %d, delay: %d ms\n", *concurrency, *totalRequests, *delayMs)

	st := &stats{
		total:         *totalRequests,
		errorCounts:   make(map[string]int),
		scenarioCount: make(map[string]int),
		grantedByUser: make(map[string]int64),
	}

	jobs := make(chan int, *totalRequests)
	for i := 0; i < *totalRequests; i++ {
		jobs <- i
	}
	close(jobs)

	results := make(chan result, *totalRequests)
	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				if *delayMs > 0 {
					time.Sleep(time.Duration(*delayMs) * time.Millisecond)
				}
				userID := users[rand.Intn(len(users))]
				scenario := scenarios[rand.Intn(len(scenarios))]
				results <- grant(client, *baseURL, *adminID, userID, scenario)
			}
		}()
	}
	wg.Wait()
	close(results)
	elapsed := time.Since(start)

	for r := range results {
		st.record(r)
	}

	printResults(st, elapsed)
	if !verify(client, *baseURL, users, baseline, st.grantedByUser) {
		os.Exit(1)
	}
}

func grant(client *http.Client, baseURL, adminID, userID string, scenario grantScenario) result {
	res := result{UserID: userID, Scenario: scenario.Name, Amount: scenario.Amount}

	body, err := json.Marshal(bonusRequest{
		Amount:        scenario.Amount,
		Description:   "load test " + scenario.Name,
		ExpiresInDays: scenario.ExpiresInDays,
	})
	if err != nil {
		res.Err = err
		return res
	}

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/admin/users/%s/credits/bonus", baseURL, userID), bytes.NewReader(body))
	if err != nil {
		res.Err = err
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-ID", adminID)

	started := time.Now()
	resp, err := client.Do(req)
	res.ResponseTime = time.Since(started)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	res.Success = resp.StatusCode == http.StatusCreated
	if !res.Success {
		res.Err = fmt.Errorf("HTTP status code %d", resp.StatusCode)
	}
	return res
}

func fetchBalance(client *http.Client, baseURL, userID string) (*balanceResponse, error) {
	resp, err := client.Get(fmt.Sprintf("%s/users/%s/credits/balance", baseURL, userID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP status code %d", resp.StatusCode)
	}
	var b balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *stats) record(r result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scenarioCount[r.Scenario]++
	s.responseTimes = append(s.responseTimes, r.ResponseTime)
	if r.Success {
		s.succeeded++
		s.grantedByUser[r.UserID] += r.Amount
		return
	}
	s.failed++
	msg := "unknown"
	if r.Err != nil {
		msg = r.Err.Error()
	}
	s.errorCounts[msg]++
}

func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func printResults(s *stats, elapsed time.Duration) {
	sorted := append([]time.Duration(nil), s.responseTimes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	var avg time.Duration
	if len(sorted) > 0 {
		avg = sum / time.Duration(len(sorted))
	}

	fmt.Println("\n================= GRANT LOAD RESULTS =================")
	fmt.Printf("Requests:     %d\n", s.total)
	fmt.Printf("Succeeded:    %d\n", s.succeeded)
	fmt.Printf("Failed:       %d\n", s.failed)
	fmt.Printf("Elapsed:      %.2fs\n", elapsed.Seconds())
	fmt.Printf("Throughput:   %.2f grants/s\n", float64(s.succeeded)/elapsed.Seconds())
	fmt.Printf("Average:      %v\n", avg)
	fmt.Printf("P50/P95/P99:  %v / %v / %v\n", percentile(sorted, 50), percentile(sorted, 95), percentile(sorted, 99))

	fmt.Println("\n----------------- SCENARIOS -----------------")
	for name, count := range s.scenarioCount {
		fmt.Printf("%-16s %d\n", name, count)
	}

	if len(s.errorCounts) > 0 {
		fmt.Println("\n----------------- ERRORS -----------------")
		for msg, count := range s.errorCounts {
			fmt.Printf("%-40s %d\n", msg, count)
		}
	}
}

// verify checks that every acknowledged grant landed exactly once
func verify(client *http.Client, baseURL string, users []string, baseline, granted map[string]int64) bool {
	fmt.Println("\n----------------- CONSISTENCY -----------------")
	ok := true
	for _, id := range users {
		b, err := fetchBalance(client, baseURL, id)
		if err != nil {
			fmt.Printf("%-12s could not read balance: %v\n", id, err)
			ok = false
			continue
		}
		want := baseline[id] + granted[id]
		status := "ok"
		if b.Total != want {
			status = "MISMATCH"
			ok = false
		}
		fmt.Printf("%-12s expected %d, got %d (free %d, purchased %d) %s\n", id, want, b.Total, b.Free, b.Purchased, status)
	}
	return ok
}
