package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// registers the "mysql" driver
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	converter "github.com/malusev998/currency-converter"
)

type mysqlStorage struct {
	db        *sql.DB
	tableName string
}

// NewMySQLStorage opens and pings the database described by config.
func NewMySQLStorage(ctx context.Context, config MySQLConfig) (converter.Storage, error) {
	if err := validateTableName(config.TableName); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", config.ConnectionString)

	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to mysql: %w", err)
	}

	st, err := NewSQLStorage(db, config.TableName)

	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if config.Migrate {
		if err := st.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrating mysql table %s: %w", config.TableName, err)
		}
	}

	return st, nil
}

// NewSQLStorage wraps an already opened database. Closing the storage closes db.
func NewSQLStorage(db *sql.DB, tableName string) (converter.Storage, error) {
	if err := validateTableName(tableName); err != nil {
		return nil, err
	}

	return mysqlStorage{
		db:        db,
		tableName: tableName,
	}, nil
}

func (m mysqlStorage) GetStorageProviderName() string {
	return string(MySQL)
}

func (m mysqlStorage) Store(ctx context.Context, rates []converter.Rate) ([]converter.RateWithID, error) {
	if len(rates) == 0 {
		return []converter.RateWithID{}, nil
	}

	tx, err := m.db.BeginTx(ctx, nil)

	if err != nil {
		return nil, err
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s(id, currency, provider, rate, created_at) VALUES (?,?,?,?,?);", m.tableName))

	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	defer stmt.Close()

	stored := make([]converter.RateWithID, 0, len(rates))

	for _, rate := range rates {
		if rate.CreatedAt.IsZero() {
			rate.CreatedAt = time.Now()
		}

		id := uuid.New()

		_, err := stmt.ExecContext(
			ctx,
			id.String(),
			converter.NewPair(rate.From, rate.To).String(),
			rate.Provider,
			rate.Rate.String(),
			rate.CreatedAt.UTC().Format(MySQLTimeFormat),
		)

		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}

		stored = append(stored, converter.RateWithID{Rate: rate, ID: id})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return stored, nil
}

func (m mysqlStorage) Migrate(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s(
	id CHAR(36) NOT NULL PRIMARY KEY,
	currency CHAR(7) NOT NULL,
	provider VARCHAR(50) NOT NULL,
	rate DECIMAL(24, 12) NOT NULL,
	created_at DATETIME NOT NULL,
	INDEX %s_currency_created_at (currency, created_at)
);`, m.tableName, m.tableName))

	return err
}

func (m mysqlStorage) Drop(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s;", m.tableName))

	return err
}

func (m mysqlStorage) Close() error {
	return m.db.Close()
}
