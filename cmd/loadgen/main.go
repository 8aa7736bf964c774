package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

const (
	successColor = "\033[32m" // Green
	errorColor   = "\033[31m" // Red
	infoColor    = "\033[34m" // Blue
	resetColor   = "\033[0m"  // Reset color
)

var (
	baseURL         = flag.String("url", "http://localhost:8080", "API base URL")
	numAccounts     = flag.Int("accounts", 100, "number of accounts to create")
	numTransactions = flag.Int("transactions", 10000, "total number of transactions")
	maxConcurrency  = flag.Int("concurrency", 200, "maximum number of concurrent requests")
	initialBalance  = flag.String("balance", "10000.00", "initial balance for each account")
	maxAmount       = flag.Int("max-amount", 1000, "maximum transaction amount")

	client = &http.Client{Timeout: 30 * time.Second}
)

type Account struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
}

type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"accountId"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	ToAccountID string          `json:"toAccountId"`
}

var txTypes = []string{"deposit", "withdrawal", "fee", "transfer"}

func main() {
	flag.Parse()

	fmt.Printf("%sstarting a heavy load test with %d accounts and %d transactions%s\n",
		infoColor, *numAccounts, *numTransactions, resetColor)

	// Create accounts
	accounts := createAccounts(*numAccounts)
	if len(accounts) < 2 {
		fmt.Printf("%snot enough accounts created, aborting%s\n", errorColor, resetColor)
		return
	}
	fmt.Printf("%sCreated %d accounts%s\n", successColor, len(accounts), resetColor)

	// Create semaphore for limiting concurrency
	sem := make(chan struct{}, *maxConcurrency)
	var (
		wg           sync.WaitGroup
		successCount atomic.Int64
		rejectCount  atomic.Int64
		errorCount   atomic.Int64
	)

	startTime := time.Now()
	fmt.Printf("%slaunching %d transactions with max concurrency of %d%s\n",
		infoColor, *numTransactions, *maxConcurrency, resetColor)

	for i := 0; i < *numTransactions; i++ {
		wg.Add(1)
		sem <- struct{}{} // Acquire semaphore

		go func(txNum int) {
			defer wg.Done()
			defer func() { <-sem }() // Release semaphore

			account := accounts[rand.Intn(len(accounts))]
			txType := txTypes[rand.Intn(len(txTypes))]

			// Random amount between 1 and maxAmount, two decimal places
			amount := decimal.NewFromInt(rand.Int63n(int64(*maxAmount)*100) + 100).Shift(-2)

			toAccountID := ""
			if txType == "transfer" {
				for toAccountID == "" || toAccountID == account.ID {
					toAccountID = accounts[rand.Intn(len(accounts))].ID
				}
			}

			txID, status, err := createTransaction(account.ID, txType, amount, toAccountID)
			switch {
			case err == nil:
				successCount.Add(1)
				if txNum%500 == 0 { // Log every 500th successful transaction
					fmt.Printf("%sTransaction %d: %s of %s on account %s (txID: %s)%s\n",
						successColor, txNum, txType, amount.StringFixed(2), account.ID, txID, resetColor)
				}
			case status == http.StatusBadRequest:
				// business rejections such as insufficient funds are expected
				rejectCount.Add(1)
			default:
				errorCount.Add(1)
				if txNum%100 == 0 {
					fmt.Printf("%sTransaction failed: %v%s\n", errorColor, err, resetColor)
				}
			}
		}(i)
	}

	wg.Wait()
	duration := time.Since(startTime)

	total := float64(*numTransactions)
	fmt.Printf("\n%s=== heavy load Test Results ===%s\n", infoColor, resetColor)
	fmt.Printf("Total number of transactions: %d\n", *numTransactions)
	fmt.Printf("Successful: %s%d (%.1f%%)%s\n",
		successColor, successCount.Load(), float64(successCount.Load())/total*100, resetColor)
	fmt.Printf("Rejected: %d (%.1f%%)\n", rejectCount.Load(), float64(rejectCount.Load())/total*100)
	fmt.Printf("Failed: %s%d (%.1f%%)%s\n",
		errorColor, errorCount.Load(), float64(errorCount.Load())/total*100, resetColor)
	fmt.Printf("Duration: %.2f seconds\n", duration.Seconds())
	fmt.Printf("Throughput: %.2f transactions/second\n", total/duration.Seconds())

	fmt.Printf("\n%sReconciling account balances...%s\n", infoColor, resetColor)
	reconcile(accounts)
}

// createAccounts creates the specified number of accounts
func createAccounts(count int) []Account {
	accounts := make([]Account, 0, count)

	for i := 0; i < count; i++ {
		reqBody := map[string]string{
			"customerId":  fmt.Sprintf("load-%d", i),
			"accountType": "checking",
			"balance":     *initialBalance,
		}

		var account Account
		status, err := doJSON(http.MethodPost, "/accounts", reqBody, &account)
		if err != nil || status != http.StatusCreated {
			fmt.Printf("%sFailed to create account, status: %d: %v%s\n", errorColor, status, err, resetColor)
			continue
		}

		accounts = append(accounts, account)
		if i%10 == 0 || i == count-1 {
			fmt.Printf("%screated account %d/%d: %s with balance %s%s\n",
				successColor, i+1, count, account.ID, account.Balance.StringFixed(2), resetColor)
		}
	}

	return accounts
}

// createTransaction creates a transaction for the specified account
func createTransaction(accountID, txType string, amount decimal.Decimal, toAccountID string) (string, int, error) {
	reqBody := map[string]any{
		"accountId":   accountID,
		"type":        txType,
		"amount":      amount,
		"description": "load test " + txType,
	}
	if toAccountID != "" {
		reqBody["toAccountId"] = toAccountID
	}

	var tx Transaction
	status, err := doJSON(http.MethodPost, "/transactions", reqBody, &tx)
	if err != nil {
		return "", status, err
	}
	if status != http.StatusCreated {
		return "", status, fmt.Errorf("failed to create transaction, status: %d", status)
	}
	return tx.ID, status, nil
}

func doJSON(method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, *baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// reconcile recomputes every balance from the recorded transactions and
// compares it with the balance the API reports.
func reconcile(accounts []Account) {
	incoming := make(map[string]decimal.Decimal)
	outgoing := make(map[string]decimal.Decimal)
	current := make(map[string]decimal.Decimal)

	for _, a := range accounts {
		var balance struct {
			Balance decimal.Decimal `json:"balance"`
		}
		if _, err := doJSON(http.MethodGet, "/accounts/"+a.ID+"/balance", nil, &balance); err != nil {
			fmt.Printf("%sError retrieving account %s: %v%s\n", errorColor, a.ID, err, resetColor)
			return
		}
		current[a.ID] = balance.Balance

		var txs []Transaction
		if _, err := doJSON(http.MethodGet, "/accounts/"+a.ID+"/transactions", nil, &txs); err != nil {
			fmt.Printf("%sError retrieving transactions for account %s: %v%s\n", errorColor, a.ID, err, resetColor)
			return
		}
		for _, tx := range txs {
			switch tx.Type {
			case "deposit":
				incoming[a.ID] = incoming[a.ID].Add(tx.Amount)
			case "withdrawal", "fee":
				outgoing[a.ID] = outgoing[a.ID].Add(tx.Amount)
			case "transfer":
				outgoing[a.ID] = outgoing[a.ID].Add(tx.Amount)
				incoming[tx.ToAccountID] = incoming[tx.ToAccountID].Add(tx.Amount)
			}
		}
	}

	mismatches := 0
	for _, a := range accounts {
		expected := a.Balance.Add(incoming[a.ID]).Sub(outgoing[a.ID])
		if !expected.Equal(current[a.ID]) {
			mismatches++
			fmt.Printf("%sAccount %s: expected %s, got %s%s\n",
				errorColor, a.ID, expected.StringFixed(2), current[a.ID].StringFixed(2), resetColor)
		}
		if current[a.ID].IsNegative() {
			mismatches++
			fmt.Printf("%sAccount %s is overdrawn: %s%s\n", errorColor, a.ID, current[a.ID].StringFixed(2), resetColor)
		}
	}

	if mismatches == 0 {
		fmt.Printf("%sAll %d accounts reconcile%s\n", successColor, len(accounts), resetColor)
	}
}
