// Command ledgercheck recomputes an institute's balance from its
// statement and compares it against the reported summary. The two are
// derived from the same immutable records, so any drift points at a
// broken transactional path.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type statementEntry struct {
	OccurredAt time.Time `json:"occurred_at"`
	Kind       string    `json:"kind"`
	Amount     int64     `json:"amount"`
	Direction  string    `json:"direction"`
}

type summary struct {
	InstituteID string `json:"institute_id"`
	Balance     int64  `json:"balance"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	var (
		base        string
		instituteID string
		bearer      string
		capability  string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&instituteID, "institute", "", "Institute ID to reconcile")
	flag.StringVar(&bearer, "bearer", "", "Bearer token of an institute admin")
	flag.StringVar(&capability, "capability", "", "Institute capability token")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if instituteID == "" {
		log.Fatal("-institute is required")
	}

	client := &http.Client{Timeout: timeout}

	var sum summary
	if err := fetch(client, base, instituteID, "/summary", bearer, capability, &sum); err != nil {
		log.Fatalf("fetch summary: %v", err)
	}

	var entries []statementEntry
	if err := fetch(client, base, instituteID, "/statement", bearer, capability, &entries); err != nil {
		log.Fatalf("fetch statement: %v", err)
	}

	var credits, debits int64
	byKind := map[string]int{}
	for _, e := range entries {
		byKind[e.Kind]++
		switch e.Direction {
		case "CREDIT":
			credits += e.Amount
		case "DEBIT":
			debits += e.Amount
		default:
			log.Fatalf("unknown direction %q", e.Direction)
		}
	}
	derived := credits - debits

	fmt.Printf("Institute %s\n", instituteID)
	fmt.Printf("  statement entries: %d", len(entries))
	for kind, n := range byKind {
		fmt.Printf("  %s=%d", kind, n)
	}
	fmt.Println()
	fmt.Printf("  credits: %d, debits: %d, derived balance: %d\n", credits, debits, derived)
	fmt.Printf("  reported balance: %d\n", sum.Balance)

	if derived != sum.Balance {
		fmt.Printf("MISMATCH: derived %d != reported %d (drift %d)\n", derived, sum.Balance, derived-sum.Balance)
		os.Exit(1)
	}
	fmt.Println("OK: statement reconciles with summary")
}

func fetch(client *http.Client, base, instituteID, suffix, bearer, capability string, out interface{}) error {
	url := strings.TrimRight(base, "/") + "/institutes/" + instituteID + suffix
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if capability != "" {
		req.Header.Set("X-Institute-Token", capability)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	if env.Error != nil {
		return fmt.Errorf("%s: %s (%s)", url, env.Error.Message, env.Error.Code)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}
	return json.Unmarshal(env.Data, out)
}
