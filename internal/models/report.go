package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Dashboard struct {
	TotalAccounts      int                     `json:"totalAccounts"`
	ActiveAccounts     int                     `json:"activeAccounts"`
	TotalBalance       decimal.Decimal         `json:"totalBalance"`
	TotalTransactions  int                     `json:"totalTransactions"`
	RecentTransactions []*Transaction          `json:"recentTransactions"`
	AccountsByType     map[AccountType]int     `json:"accountsByType"`
	TransactionsByType map[TransactionType]int `json:"transactionsByType"`
}

type FinancialSummary struct {
	TotalDeposits            decimal.Decimal `json:"totalDeposits"`
	TotalWithdrawals         decimal.Decimal `json:"totalWithdrawals"`
	TotalTransfers           decimal.Decimal `json:"totalTransfers"`
	TotalFees                decimal.Decimal `json:"totalFees"`
	NetFlow                  decimal.Decimal `json:"netFlow"`
	TotalBalance             decimal.Decimal `json:"totalBalance"`
	AverageAccountBalance    decimal.Decimal `json:"averageAccountBalance"`
	TransactionCount         int             `json:"transactionCount"`
	AverageTransactionAmount decimal.Decimal `json:"averageTransactionAmount"`
}

type BalanceDistribution struct {
	Under1000            int `json:"under1000"`
	Between1000And10000  int `json:"between1000and10000"`
	Between10000And50000 int `json:"between10000and50000"`
	Over50000            int `json:"over50000"`
}

type AccountActivity struct {
	ID                  string          `json:"id"`
	AccountNumber       string          `json:"accountNumber"`
	AccountType         AccountType     `json:"accountType"`
	Balance             decimal.Decimal `json:"balance"`
	TransactionCount    int             `json:"transactionCount"`
	LastTransactionDate *time.Time      `json:"lastTransactionDate"`
}

type AccountAnalytics struct {
	TotalAccounts       int                   `json:"totalAccounts"`
	AccountsByType      map[AccountType]int   `json:"accountsByType"`
	AccountsByStatus    map[AccountStatus]int `json:"accountsByStatus"`
	BalanceDistribution BalanceDistribution   `json:"balanceDistribution"`
	TotalBalance        decimal.Decimal       `json:"totalBalance"`
	AverageBalance      decimal.Decimal       `json:"averageBalance"`
	MostActiveAccounts  []AccountActivity     `json:"mostActiveAccounts"`
}

type VolumeByType struct {
	Deposits    decimal.Decimal `json:"deposits"`
	Withdrawals decimal.Decimal `json:"withdrawals"`
	Transfers   decimal.Decimal `json:"transfers"`
	Fees        decimal.Decimal `json:"fees"`
}

type TransactionAnalytics struct {
	Period                   string                    `json:"period"`
	TotalTransactions        int                       `json:"totalTransactions"`
	TransactionsByType       map[TransactionType]int   `json:"transactionsByType"`
	TransactionsByStatus     map[TransactionStatus]int `json:"transactionsByStatus"`
	VolumeByType             VolumeByType              `json:"volumeByType"`
	AverageTransactionAmount decimal.Decimal           `json:"averageTransactionAmount"`
	LargestTransaction       decimal.Decimal           `json:"largestTransaction"`
	SmallestTransaction      decimal.Decimal           `json:"smallestTransaction"`
}

type TransactionStats struct {
	TotalTransactions    int                       `json:"totalTransactions"`
	TotalDeposits        decimal.Decimal           `json:"totalDeposits"`
	TotalWithdrawals     decimal.Decimal           `json:"totalWithdrawals"`
	TotalTransfers       decimal.Decimal           `json:"totalTransfers"`
	TotalBalance         decimal.Decimal           `json:"totalBalance"`
	TransactionsByType   map[TransactionType]int   `json:"transactionsByType"`
	TransactionsByStatus map[TransactionStatus]int `json:"transactionsByStatus"`
}
