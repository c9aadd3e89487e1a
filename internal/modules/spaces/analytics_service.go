package spaces

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// AnalyticsConfig controls growth extrapolation
type AnalyticsConfig struct {
	// Compounding annualizes growth geometrically; false scales it linearly
	Compounding bool
	DaysPerYear float64
}

// DefaultAnalyticsConfig compounds over a 365-day year
func DefaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{Compounding: true, DaysPerYear: 365}
}

// BalancePoint is one sample of a space's balance
type BalancePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Balance   decimal.Decimal `json:"balance"`
}

// TransactionMetrics summarizes the entries of a window
type TransactionMetrics struct {
	Count            int             `json:"count"`
	CreditCount      int             `json:"credit_count"`
	DebitCount       int             `json:"debit_count"`
	Inflow           decimal.Decimal `json:"inflow"`
	Outflow          decimal.Decimal `json:"outflow"`
	AverageAbsAmount decimal.Decimal `json:"average_abs_amount"`
}

// GoalProgress tracks the closing balance against a space's goal
type GoalProgress struct {
	TargetAmount        decimal.Decimal `json:"target_amount"`
	TargetDate          *time.Time      `json:"target_date,omitempty"`
	ProgressPct         float64         `json:"progress_pct"`
	ProjectedCompletion *time.Time      `json:"projected_completion,omitempty"`
	OnTrack             *bool           `json:"on_track,omitempty"`
}

// AnalyticsReport is derived from the ledger on demand and never stored.
// Percentages are in percent units.
type AnalyticsReport struct {
	SpaceID             string             `json:"space_id"`
	AccountID           string             `json:"account_id"`
	Start               time.Time          `json:"start"`
	End                 time.Time          `json:"end"`
	OpeningBalance      decimal.Decimal    `json:"opening_balance"`
	ClosingBalance      decimal.Decimal    `json:"closing_balance"`
	LowestBalance       decimal.Decimal    `json:"lowest_balance"`
	HighestBalance      decimal.Decimal    `json:"highest_balance"`
	AverageBalance      decimal.Decimal    `json:"average_balance"`
	NetChange           decimal.Decimal    `json:"net_change"`
	NetChangePct        *float64           `json:"net_change_pct"`
	AnnualizedGrowthPct *float64           `json:"annualized_growth_pct"`
	Transactions        TransactionMetrics `json:"transactions"`
	Series              []BalancePoint     `json:"series"`
	Goal                *GoalProgress      `json:"goal,omitempty"`
	AccountSharePct     *float64           `json:"account_share_pct"`
}

// RankedSpace is one row of an account ranking
type RankedSpace struct {
	Rank   int              `json:"rank"`
	Name   string           `json:"name"`
	Report *AnalyticsReport `json:"report"`
}

// AnalyticsService computes read-only reports over the ledger
type AnalyticsService struct {
	store Store
	cfg   AnalyticsConfig
	log   zerolog.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(store Store, cfg AnalyticsConfig, log zerolog.Logger) *AnalyticsService {
	if cfg.DaysPerYear <= 0 {
		cfg.DaysPerYear = DefaultAnalyticsConfig().DaysPerYear
	}
	return &AnalyticsService{
		store: store,
		cfg:   cfg,
		log:   log.With().Str("service", "analytics").Logger(),
	}
}

// ComputeReport builds the report of one space over [start, end]
func (s *AnalyticsService) ComputeReport(ctx context.Context, spaceID string, start, end time.Time) (*AnalyticsReport, error) {
	if !end.After(start) {
		return nil, validationf("end", "end must be after start")
	}
	start, end = start.UTC(), end.UTC()

	var report *AnalyticsReport
	err := s.store.Snapshot(ctx, func(tx Store) error {
		space, err := tx.Spaces().Get(ctx, spaceID)
		if err != nil {
			return err
		}
		if space == nil {
			return spaceNotFound(spaceID)
		}

		accountTotal, err := accountClosingTotal(ctx, tx, space.AccountID, end)
		if err != nil {
			return err
		}

		report, err = s.build(ctx, tx, space, start, end, accountTotal)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("space_id", spaceID).
		Int("entries", report.Transactions.Count).
		Msg("Computed analytics report")

	return report, nil
}

// RankSpaces reports on every visible space of an account, best growth first.
// Spaces without a defined growth percentage rank last; ties go to the higher
// closing balance, then the lower ID.
func (s *AnalyticsService) RankSpaces(ctx context.Context, accountID string, start, end time.Time) ([]*RankedSpace, error) {
	if !end.After(start) {
		return nil, validationf("end", "end must be after start")
	}
	start, end = start.UTC(), end.UTC()

	var ranked []*RankedSpace
	err := s.store.Snapshot(ctx, func(tx Store) error {
		spaces, err := tx.Spaces().GetAllForAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if len(spaces) == 0 {
			return &NotFoundError{Resource: "account", ID: accountID}
		}

		accountTotal, err := accountClosingTotal(ctx, tx, accountID, end)
		if err != nil {
			return err
		}

		for _, space := range spaces {
			if !space.IsVisible {
				continue
			}
			report, err := s.build(ctx, tx, space, start, end, accountTotal)
			if err != nil {
				return err
			}
			ranked = append(ranked, &RankedSpace{Name: space.Name, Report: report})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Report, ranked[j].Report
		switch {
		case a.NetChangePct != nil && b.NetChangePct == nil:
			return true
		case a.NetChangePct == nil && b.NetChangePct != nil:
			return false
		case a.NetChangePct != nil && *a.NetChangePct != *b.NetChangePct:
			return *a.NetChangePct > *b.NetChangePct
		}
		if c := a.ClosingBalance.Cmp(b.ClosingBalance); c != 0 {
			return c > 0
		}
		return a.SpaceID < b.SpaceID
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return ranked, nil
}

func (s *AnalyticsService) build(ctx context.Context, tx Store, space *Space, start, end time.Time, accountTotal decimal.Decimal) (*AnalyticsReport, error) {
	entries, err := tx.Ledger().Query(ctx, space.ID, start, end)
	if err != nil {
		return nil, err
	}

	opening := decimal.Zero
	prior, err := tx.Ledger().LastBefore(ctx, space.ID, start)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		opening = prior.BalanceAfter
	}

	closing := opening
	if len(entries) > 0 {
		closing = entries[len(entries)-1].BalanceAfter
	}

	report := &AnalyticsReport{
		SpaceID:        space.ID,
		AccountID:      space.AccountID,
		Start:          start,
		End:            end,
		OpeningBalance: opening,
		ClosingBalance: closing,
		LowestBalance:  opening,
		HighestBalance: opening,
		AverageBalance: timeWeightedAverage(opening, entries, start, end),
		NetChange:      closing.Sub(opening),
		Transactions:   transactionMetrics(entries),
		Series:         make([]BalancePoint, 0, len(entries)+1),
	}

	report.Series = append(report.Series, BalancePoint{Timestamp: start, Balance: opening})
	for _, e := range entries {
		report.LowestBalance = decimal.Min(report.LowestBalance, e.BalanceAfter)
		report.HighestBalance = decimal.Max(report.HighestBalance, e.BalanceAfter)
		report.Series = append(report.Series, BalancePoint{Timestamp: e.OccurredAt, Balance: e.BalanceAfter})
	}

	windowDays := end.Sub(start).Hours() / 24
	if !opening.IsZero() {
		pct := roundPct(report.NetChange.Div(opening).Mul(decimal.NewFromInt(100)).InexactFloat64())
		report.NetChangePct = &pct
		report.AnnualizedGrowthPct = s.annualize(pct, windowDays)
	}

	report.Goal = goalProgress(space.Goal, closing, report.NetChange, end, windowDays)

	if accountTotal.IsPositive() {
		share := roundPct(closing.Div(accountTotal).Mul(decimal.NewFromInt(100)).InexactFloat64())
		report.AccountSharePct = &share
	}

	return report, nil
}

// annualize extrapolates a window's growth to a year. Non-finite results are dropped.
func (s *AnalyticsService) annualize(pct, windowDays float64) *float64 {
	if windowDays <= 0 {
		return nil
	}
	periods := s.cfg.DaysPerYear / windowDays

	var annual float64
	if s.cfg.Compounding {
		annual = (math.Pow(1+pct/100, periods) - 1) * 100
	} else {
		annual = pct * periods
	}
	if math.IsNaN(annual) || math.IsInf(annual, 0) {
		return nil
	}

	annual = roundPct(annual)
	return &annual
}

// timeWeightedAverage weights each balance level by how long it was held in [start, end]
func timeWeightedAverage(opening decimal.Decimal, entries []*LedgerEntry, start, end time.Time) decimal.Decimal {
	if len(entries) == 0 {
		return opening
	}

	values := make([]float64, 0, len(entries)+1)
	weights := make([]float64, 0, len(entries)+1)

	cursor, level := start, opening
	for _, e := range entries {
		values = append(values, level.InexactFloat64())
		weights = append(weights, e.OccurredAt.Sub(cursor).Seconds())
		cursor, level = e.OccurredAt, e.BalanceAfter
	}
	values = append(values, level.InexactFloat64())
	weights = append(weights, end.Sub(cursor).Seconds())

	return decimal.NewFromFloat(stat.Mean(values, weights)).Round(Scale)
}

func transactionMetrics(entries []*LedgerEntry) TransactionMetrics {
	m := TransactionMetrics{
		Count:            len(entries),
		Inflow:           decimal.Zero,
		Outflow:          decimal.Zero,
		AverageAbsAmount: decimal.Zero,
	}

	absTotal := decimal.Zero
	for _, e := range entries {
		switch {
		case e.Amount.IsPositive():
			m.CreditCount++
			m.Inflow = m.Inflow.Add(e.Amount)
		case e.Amount.IsNegative():
			m.DebitCount++
			m.Outflow = m.Outflow.Add(e.Amount.Abs())
		}
		absTotal = absTotal.Add(e.Amount.Abs())
	}
	if m.Count > 0 {
		m.AverageAbsAmount = absTotal.Div(decimal.NewFromInt(int64(m.Count))).Round(Scale)
	}

	return m
}

// goalProgress projects linearly from the window's average daily growth
func goalProgress(goal *Goal, closing, netChange decimal.Decimal, end time.Time, windowDays float64) *GoalProgress {
	if goal == nil || goal.TargetAmount == nil {
		return nil
	}
	target := *goal.TargetAmount

	progress := &GoalProgress{
		TargetAmount: target,
		TargetDate:   goal.TargetDate,
		ProgressPct:  math.Min(100, roundPct(closing.Div(target).Mul(decimal.NewFromInt(100)).InexactFloat64())),
	}
	if goal.TargetDate == nil {
		return progress
	}

	var projected *time.Time
	if closing.GreaterThanOrEqual(target) {
		projected = timePtr(end)
	} else if perDay := netChange.InexactFloat64() / windowDays; perDay > 0 {
		days := target.Sub(closing).InexactFloat64() / perDay
		projected = addDays(end, days)
	}
	if projected != nil {
		onTrack := !projected.After(*goal.TargetDate)
		progress.ProjectedCompletion = projected
		progress.OnTrack = &onTrack
	}

	return progress
}

// maxProjectionDays keeps projections inside time.Time's comfortable range
const maxProjectionDays = 3_650_000

func addDays(t time.Time, days float64) *time.Time {
	if math.IsNaN(days) || math.IsInf(days, 0) || days > maxProjectionDays {
		return nil
	}
	whole := math.Floor(days)
	frac := days - whole
	projected := t.AddDate(0, 0, int(whole)).Add(time.Duration(frac * float64(24*time.Hour)))
	return &projected
}

// accountClosingTotal sums the balance of every space of the account as of end
func accountClosingTotal(ctx context.Context, tx Store, accountID string, end time.Time) (decimal.Decimal, error) {
	spaces, err := tx.Spaces().GetAllForAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, space := range spaces {
		last, err := tx.Ledger().LastAtOrBefore(ctx, space.ID, end)
		if err != nil {
			return decimal.Zero, err
		}
		if last != nil {
			total = total.Add(last.BalanceAfter)
		}
	}
	return total, nil
}

func roundPct(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
