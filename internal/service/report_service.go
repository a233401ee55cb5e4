package service

import (
	"sort"
	"time"

	"go-pos-backend/internal/model"
	"go-pos-backend/internal/repository"

	"github.com/shopspring/decimal"
)

// DashboardStats is the admin landing-page overview.
type DashboardStats struct {
	TotalProducts     int64           `json:"total_products"`
	LowStockProducts  int             `json:"low_stock_products"`
	TodayTransactions int64           `json:"today_transactions"`
	TodayRevenue      decimal.Decimal `json:"today_revenue"`
	TotalKasir        int64           `json:"total_kasir"`
}

// SalesReport aggregates committed sales over a period.
type SalesReport struct {
	Summary     SalesSummary            `json:"summary"`
	DailyData   []repository.DailySales `json:"daily_data"`
	TopProducts []repository.TopProduct `json:"top_products"`
}

type SalesSummary struct {
	TotalTransactions int64           `json:"total_transactions"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	TotalItems        decimal.Decimal `json:"total_items"`
}

type ReportService interface {
	GetDashboardStats() (*DashboardStats, error)
	GetSalesReport(start, end time.Time, groupBy string) (*SalesReport, error)
	GetStockMovement(start, end time.Time) ([]repository.StockMovementData, error)
}

type reportService struct {
	productRepo     repository.ProductRepository
	transactionRepo repository.TransactionRepository
	ledgerRepo      repository.LedgerRepository
	userRepo        repository.UserRepository
}

func NewReportService(
	pRepo repository.ProductRepository,
	tRepo repository.TransactionRepository,
	lRepo repository.LedgerRepository,
	uRepo repository.UserRepository,
) ReportService {
	return &reportService{
		productRepo:     pRepo,
		transactionRepo: tRepo,
		ledgerRepo:      lRepo,
		userRepo:        uRepo,
	}
}

func (s *reportService) GetDashboardStats() (*DashboardStats, error) {
	products, err := s.productRepo.FindAll(repository.ProductFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	lowStock := 0
	for _, p := range products {
		if p.IsLowStock() {
			lowStock++
		}
	}

	count, revenue, err := s.transactionRepo.TodayStats(time.Now())
	if err != nil {
		return nil, err
	}

	totalKasir, err := s.userRepo.CountByRole(model.RoleKasir)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		TotalProducts:     int64(len(products)),
		LowStockProducts:  lowStock,
		TodayTransactions: count,
		TodayRevenue:      revenue,
		TotalKasir:        totalKasir,
	}, nil
}

// GetSalesReport groups committed sales into day, week or month buckets and
// attaches the ten best-selling products of the period.
func (s *reportService) GetSalesReport(start, end time.Time, groupBy string) (*SalesReport, error) {
	transactions, err := s.transactionRepo.FindInRange(start, end)
	if err != nil {
		return nil, err
	}

	summary := SalesSummary{
		TotalAmount: decimal.Zero,
		TotalItems:  decimal.Zero,
	}
	grouped := make(map[string]*repository.DailySales)

	for _, t := range transactions {
		summary.TotalTransactions++
		summary.TotalAmount = summary.TotalAmount.Add(t.TotalAmount)

		items := decimal.Zero
		for _, item := range t.Items {
			items = items.Add(item.Quantity)
		}
		summary.TotalItems = summary.TotalItems.Add(items)

		key := bucketKey(t.CreatedAt, groupBy)
		bucket, ok := grouped[key]
		if !ok {
			bucket = &repository.DailySales{Date: key}
			grouped[key] = bucket
		}
		bucket.TotalTransactions++
		bucket.TotalAmount = bucket.TotalAmount.Add(t.TotalAmount)
		bucket.TotalItems = bucket.TotalItems.Add(items)
	}

	daily := make([]repository.DailySales, 0, len(grouped))
	for _, bucket := range grouped {
		daily = append(daily, *bucket)
	}
	// Keys are zero-padded dates, lexicographic order is chronological
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	top, err := s.transactionRepo.TopProducts(&start, &end, 10)
	if err != nil {
		return nil, err
	}

	return &SalesReport{
		Summary:     summary,
		DailyData:   daily,
		TopProducts: top,
	}, nil
}

func (s *reportService) GetStockMovement(start, end time.Time) ([]repository.StockMovementData, error) {
	return s.ledgerRepo.GetStockMovement(start, end)
}

func bucketKey(t time.Time, groupBy string) string {
	switch groupBy {
	case "month":
		return t.Format("2006-01")
	case "week":
		// Bucket on the Sunday that starts the week
		weekStart := t.AddDate(0, 0, -int(t.Weekday()))
		return weekStart.Format("2006-01-02")
	default:
		return t.Format("2006-01-02")
	}
}
