package service

import (
	"context"
	"sort"
	"time"

	"github.com/abkawan/backoffice-ledger/internal/models"
	"github.com/shopspring/decimal"
)

const (
	recentTransactions = 5
	mostActiveAccounts = 10
)

var (
	thousand      = decimal.NewFromInt(1000)
	tenThousand   = decimal.NewFromInt(10000)
	fiftyThousand = decimal.NewFromInt(50000)
)

// StatsService computes read-only rollups over the account and transaction
// stores. Every report works on whatever snapshot the stores return.
type StatsService struct {
	accounts     AccountStore
	transactions TransactionStore
	now          func() time.Time
}

func NewStatsService(accounts AccountStore, transactions TransactionStore) *StatsService {
	return &StatsService{
		accounts:     accounts,
		transactions: transactions,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *StatsService) allAccounts(ctx context.Context) ([]*models.Account, error) {
	accounts, err := s.accounts.ListAccounts(ctx, models.AccountFilter{})
	if err != nil {
		return nil, persistenceError("failed to list accounts", err)
	}
	return accounts, nil
}

func (s *StatsService) allTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	filter.Limit, filter.Offset = 0, 0
	txs, _, err := s.transactions.ListTransactions(ctx, filter)
	if err != nil {
		return nil, persistenceError("failed to list transactions", err)
	}
	return txs, nil
}

func totalBalance(accounts []*models.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

func average(total decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n))).Round(2)
}

// Dashboard returns headline counts and the most recent transactions.
func (s *StatsService) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	accounts, err := s.allAccounts(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := s.allTransactions(ctx, models.TransactionFilter{})
	if err != nil {
		return nil, err
	}

	d := &models.Dashboard{
		TotalAccounts:      len(accounts),
		TotalBalance:       totalBalance(accounts),
		TotalTransactions:  len(txs),
		AccountsByType:     make(map[models.AccountType]int, len(models.AccountTypes)),
		TransactionsByType: make(map[models.TransactionType]int, len(models.TransactionTypes)),
	}
	for _, a := range accounts {
		if a.Status == models.Active {
			d.ActiveAccounts++
		}
		d.AccountsByType[a.Type]++
	}
	for _, tx := range txs {
		d.TransactionsByType[tx.Type]++
	}

	// txs is newest first
	d.RecentTransactions = txs[:min(recentTransactions, len(txs))]
	return d, nil
}

// FinancialSummary totals money movement between start and end. Nil bounds
// are open.
func (s *StatsService) FinancialSummary(ctx context.Context, start, end *time.Time) (*models.FinancialSummary, error) {
	accounts, err := s.allAccounts(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := s.allTransactions(ctx, models.TransactionFilter{StartDate: start, EndDate: end})
	if err != nil {
		return nil, err
	}

	sum := &models.FinancialSummary{TransactionCount: len(txs)}
	volume := decimal.Zero
	for _, tx := range txs {
		volume = volume.Add(tx.Amount)
		switch tx.Type {
		case models.Deposit:
			sum.TotalDeposits = sum.TotalDeposits.Add(tx.Amount)
		case models.Withdrawal:
			sum.TotalWithdrawals = sum.TotalWithdrawals.Add(tx.Amount)
		case models.Transfer:
			sum.TotalTransfers = sum.TotalTransfers.Add(tx.Amount)
		case models.Fee:
			sum.TotalFees = sum.TotalFees.Add(tx.Amount)
		}
	}

	// transfers move money between accounts and do not change the net
	sum.NetFlow = sum.TotalDeposits.Sub(sum.TotalWithdrawals).Sub(sum.TotalFees)
	sum.TotalBalance = totalBalance(accounts)
	sum.AverageAccountBalance = average(sum.TotalBalance, len(accounts))
	sum.AverageTransactionAmount = average(volume, len(txs))
	return sum, nil
}

func bucket(d *models.BalanceDistribution, balance decimal.Decimal) {
	switch {
	case balance.LessThan(thousand):
		d.Under1000++
	case balance.LessThan(tenThousand):
		d.Between1000And10000++
	case balance.LessThan(fiftyThousand):
		d.Between10000And50000++
	default:
		d.Over50000++
	}
}

// AccountAnalytics groups accounts by type, status and balance range and
// ranks the ten accounts with the most transactions.
func (s *StatsService) AccountAnalytics(ctx context.Context) (*models.AccountAnalytics, error) {
	accounts, err := s.allAccounts(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := s.allTransactions(ctx, models.TransactionFilter{})
	if err != nil {
		return nil, err
	}

	out := &models.AccountAnalytics{
		TotalAccounts:    len(accounts),
		AccountsByType:   make(map[models.AccountType]int, len(models.AccountTypes)),
		AccountsByStatus: make(map[models.AccountStatus]int, len(models.AccountStatuses)),
		TotalBalance:     totalBalance(accounts),
	}
	for _, a := range accounts {
		out.AccountsByType[a.Type]++
		out.AccountsByStatus[a.Status]++
		bucket(&out.BalanceDistribution, a.Balance)
	}
	out.AverageBalance = average(out.TotalBalance, len(accounts))

	type activity struct {
		count int
		last  time.Time
	}
	byAccount := make(map[string]*activity)
	for _, tx := range txs {
		act, ok := byAccount[tx.AccountID]
		if !ok {
			act = &activity{}
			byAccount[tx.AccountID] = act
		}
		act.count++
		if tx.Timestamp.After(act.last) {
			act.last = tx.Timestamp
		}
	}

	active := make([]models.AccountActivity, 0, len(accounts))
	for _, a := range accounts {
		entry := models.AccountActivity{
			ID:            a.ID,
			AccountNumber: a.MaskedNumber(),
			AccountType:   a.Type,
			Balance:       a.Balance,
		}
		if act, ok := byAccount[a.ID]; ok {
			last := act.last
			entry.TransactionCount = act.count
			entry.LastTransactionDate = &last
		}
		active = append(active, entry)
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].TransactionCount > active[j].TransactionCount
	})
	out.MostActiveAccounts = active[:min(mostActiveAccounts, len(active))]
	return out, nil
}

// periodStart maps a report period to the start of its window. "all" and ""
// have no start.
func (s *StatsService) periodStart(period string) (*time.Time, error) {
	now := s.now()
	var start time.Time
	switch period {
	case "", "all":
		return nil, nil
	case "day":
		start = now.AddDate(0, 0, -1)
	case "week":
		start = now.AddDate(0, 0, -7)
	case "month":
		start = now.AddDate(0, -1, 0)
	default:
		return nil, newError(CodeInvalidRequest, "period must be one of day, week, month, all")
	}
	return &start, nil
}

// TransactionAnalytics breaks down the transactions of a recent period by
// type and status.
func (s *StatsService) TransactionAnalytics(ctx context.Context, period string) (*models.TransactionAnalytics, error) {
	start, err := s.periodStart(period)
	if err != nil {
		return nil, err
	}
	if period == "" {
		period = "all"
	}

	txs, err := s.allTransactions(ctx, models.TransactionFilter{StartDate: start})
	if err != nil {
		return nil, err
	}

	out := &models.TransactionAnalytics{
		Period:               period,
		TotalTransactions:    len(txs),
		TransactionsByType:   make(map[models.TransactionType]int, len(models.TransactionTypes)),
		TransactionsByStatus: make(map[models.TransactionStatus]int, len(models.TransactionStatuses)),
	}
	volume := decimal.Zero
	for i, tx := range txs {
		out.TransactionsByType[tx.Type]++
		out.TransactionsByStatus[tx.Status]++
		volume = volume.Add(tx.Amount)

		switch tx.Type {
		case models.Deposit:
			out.VolumeByType.Deposits = out.VolumeByType.Deposits.Add(tx.Amount)
		case models.Withdrawal:
			out.VolumeByType.Withdrawals = out.VolumeByType.Withdrawals.Add(tx.Amount)
		case models.Transfer:
			out.VolumeByType.Transfers = out.VolumeByType.Transfers.Add(tx.Amount)
		case models.Fee:
			out.VolumeByType.Fees = out.VolumeByType.Fees.Add(tx.Amount)
		}

		if i == 0 || tx.Amount.GreaterThan(out.LargestTransaction) {
			out.LargestTransaction = tx.Amount
		}
		if i == 0 || tx.Amount.LessThan(out.SmallestTransaction) {
			out.SmallestTransaction = tx.Amount
		}
	}
	out.AverageTransactionAmount = average(volume, len(txs))
	return out, nil
}

// TransactionStats returns all-time totals per transaction type together
// with the total balance held across accounts.
func (s *StatsService) TransactionStats(ctx context.Context) (*models.TransactionStats, error) {
	accounts, err := s.allAccounts(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := s.allTransactions(ctx, models.TransactionFilter{})
	if err != nil {
		return nil, err
	}

	out := &models.TransactionStats{
		TotalTransactions:    len(txs),
		TotalBalance:         totalBalance(accounts),
		TransactionsByType:   make(map[models.TransactionType]int, len(models.TransactionTypes)),
		TransactionsByStatus: make(map[models.TransactionStatus]int, len(models.TransactionStatuses)),
	}
	for _, tx := range txs {
		out.TransactionsByType[tx.Type]++
		out.TransactionsByStatus[tx.Status]++
		switch tx.Type {
		case models.Deposit:
			out.TotalDeposits = out.TotalDeposits.Add(tx.Amount)
		case models.Withdrawal:
			out.TotalWithdrawals = out.TotalWithdrawals.Add(tx.Amount)
		case models.Transfer:
			out.TotalTransfers = out.TotalTransfers.Add(tx.Amount)
		}
	}
	return out, nil
}

// TopByBalance returns up to n accounts with the highest balances.
func (s *StatsService) TopByBalance(ctx context.Context, n int) ([]*models.Account, error) {
	accounts, err := s.allAccounts(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].Balance.GreaterThan(accounts[j].Balance)
	})
	if n < 0 {
		n = 0
	}
	return accounts[:min(n, len(accounts))], nil
}
