package admission

import (
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"main/internal/model"
	"main/internal/model/enum"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// PostgresOption defines connection options for the durable ledger.
type PostgresOption struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	ConnString string
}

// ledgerRecord is the persisted form of one accepted signal.
type ledgerRecord struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol      string `gorm:"index:idx_ledger_pair"`
	Currency    string `gorm:"index:idx_ledger_pair"`
	Action      string
	Venue       string
	OrderType   string
	AmountRatio string
	Price       string
	VolumeHint  string
	Mode        string
	Timestamp   time.Time `gorm:"index:idx_ledger_ts"`
}

func (ledgerRecord) TableName() string { return "accepted_signals" }

// PostgresStore keeps the admission ledger durable across restarts so a
// redelivered webhook cannot re-trigger an already-superseded signal
// after a process bounce.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(opt PostgresOption) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(opt.dsn()), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres ledger")
	}
	if err := db.AutoMigrate(&ledgerRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate accepted_signals")
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Latest(symbol, currency string) (model.TradeSignal, bool, error) {
	var records []ledgerRecord
	err := s.db.
		Where("symbol = ? AND currency = ?", symbol, currency).
		Order("timestamp DESC").
		Limit(1).
		Find(&records).Error
	if err != nil {
		return model.TradeSignal{}, false, errors.Wrap(err, "query latest accepted signal")
	}
	if len(records) == 0 {
		return model.TradeSignal{}, false, nil
	}
	signal, err := records[0].toSignal()
	if err != nil {
		return model.TradeSignal{}, false, err
	}
	return signal, true, nil
}

func (s *PostgresStore) Append(signal model.TradeSignal) error {
	record := ledgerRecord{
		Symbol:      signal.Symbol,
		Currency:    signal.Currency,
		Action:      signal.Action.String(),
		Venue:       signal.Venue.String(),
		OrderType:   signal.OrderType.String(),
		AmountRatio: signal.AmountRatio.String(),
		Price:       signal.Price.String(),
		VolumeHint:  signal.VolumeHint.String(),
		Mode:        signal.Mode.String(),
		Timestamp:   signal.Timestamp,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return errors.Wrap(err, "insert accepted signal")
	}
	return nil
}

func (s *PostgresStore) Prune(before time.Time) error {
	err := s.db.Where("timestamp < ?", before).Delete(&ledgerRecord{}).Error
	if err != nil {
		return errors.Wrap(err, "prune accepted signals")
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r ledgerRecord) toSignal() (model.TradeSignal, error) {
	action, ok := enum.ParseAction(r.Action)
	if !ok {
		return model.TradeSignal{}, errors.Errorf("ledger: unknown action %q", r.Action)
	}
	venue, ok := enum.ParseVenue(r.Venue)
	if !ok {
		return model.TradeSignal{}, errors.Errorf("ledger: unknown venue %q", r.Venue)
	}
	orderType, ok := enum.ParseOrderType(r.OrderType)
	if !ok {
		return model.TradeSignal{}, errors.Errorf("ledger: unknown order type %q", r.OrderType)
	}
	mode, ok := enum.ParseMode(r.Mode)
	if !ok {
		return model.TradeSignal{}, errors.Errorf("ledger: unknown mode %q", r.Mode)
	}

	ratio, err := decimal.NewFromString(r.AmountRatio)
	if err != nil {
		return model.TradeSignal{}, errors.Wrap(err, "parse ledger amount ratio")
	}
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return model.TradeSignal{}, errors.Wrap(err, "parse ledger price")
	}
	volume, err := decimal.NewFromString(r.VolumeHint)
	if err != nil {
		return model.TradeSignal{}, errors.Wrap(err, "parse ledger volume")
	}

	return model.TradeSignal{
		Action:      action,
		Symbol:      r.Symbol,
		Currency:    r.Currency,
		Venue:       venue,
		OrderType:   orderType,
		AmountRatio: ratio,
		Price:       price,
		VolumeHint:  volume,
		Timestamp:   r.Timestamp,
		Mode:        mode,
	}, nil
}

func (opt PostgresOption) dsn() string {
	if opt.ConnString != "" {
		return opt.ConnString
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}
	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}
	query := url.Values{}
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()
	return u.String()
}
