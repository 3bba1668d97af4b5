package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the pos schema and its tables when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(code, ''), COALESCE(category, ''), price, sale_price, stock, is_featured
		FROM pos.products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Code, &p.Category, &p.Price, &p.SalePrice, &p.Stock, &p.IsFeatured); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(code, ''), COALESCE(category, ''), price, sale_price, stock, is_featured
		FROM pos.products
		WHERE id::text = $1
	`, id).Scan(&p.ID, &p.Name, &p.Code, &p.Category, &p.Price, &p.SalePrice, &p.Stock, &p.IsFeatured)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	return insertInvoice(ctx, s.db, invoice)
}

func (s *Store) CreateInvoiceLines(ctx context.Context, invoiceID string, lines []domain.InvoiceLine) ([]domain.InvoiceLine, error) {
	if err := store.ValidateInvoiceLines(lines); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	created, err := insertInvoiceLines(ctx, tx, invoiceID, lines)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

// CreateInvoiceWithLines writes the invoice and all of its lines in one transaction.
func (s *Store) CreateInvoiceWithLines(ctx context.Context, invoice domain.Invoice, lines []domain.InvoiceLine) (*domain.Invoice, error) {
	if err := store.ValidateInvoiceLines(lines); err != nil {
		return nil, &store.LinesWriteError{Err: err}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	created, err := insertInvoice(ctx, tx, invoice)
	if err != nil {
		return nil, err
	}
	items, err := insertInvoiceLines(ctx, tx, created.ID, lines)
	if err != nil {
		return nil, &store.LinesWriteError{Err: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created.Items = items
	return created, nil
}

func (s *Store) DeleteInvoice(ctx context.Context, invoiceID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pos.invoices WHERE id::text = $1`, invoiceID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	var (
		invoice       domain.Invoice
		customerName  sql.NullString
		customerPhone sql.NullString
		discountType  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_name, customer_phone, total_amount, discount_amount, discount_type, created_at
		FROM pos.invoices
		WHERE id::text = $1
	`, invoiceID).Scan(&invoice.ID, &customerName, &customerPhone, &invoice.TotalAmount, &invoice.DiscountAmount, &discountType, &invoice.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	invoice.CustomerName = nullableString(customerName)
	invoice.CustomerPhone = nullableString(customerPhone)
	invoice.DiscountType = domain.DiscountType(discountType)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, product_id, product_name, quantity, price, total, is_gift, gift_reason
		FROM pos.invoice_items
		WHERE invoice_id::text = $1
		ORDER BY line_no
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line       domain.InvoiceLine
			productID  sql.NullString
			giftReason sql.NullString
		)
		if err := rows.Scan(&line.ID, &line.InvoiceID, &productID, &line.ProductName, &line.Quantity, &line.Price, &line.Total, &line.IsGift, &giftReason); err != nil {
			return nil, err
		}
		line.ProductID = nullableString(productID)
		line.GiftReason = nullableString(giftReason)
		invoice.Items = append(invoice.Items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &invoice, nil
}

func insertInvoice(ctx context.Context, db execer, invoice domain.Invoice) (*domain.Invoice, error) {
	if err := store.ValidateInvoice(invoice); err != nil {
		return nil, err
	}

	created := invoice
	created.Items = nil
	err := db.QueryRowContext(ctx, `
		INSERT INTO pos.invoices (customer_name, customer_phone, total_amount, discount_amount, discount_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, total_amount, discount_amount
	`, invoice.CustomerName, invoice.CustomerPhone, invoice.TotalAmount, invoice.DiscountAmount, string(invoice.DiscountType)).Scan(&created.ID, &created.CreatedAt, &created.TotalAmount, &created.DiscountAmount)
	if err != nil {
		if isCheckViolation(err) {
			return nil, store.ErrInvalidInvoice
		}
		return nil, err
	}
	return &created, nil
}

func insertInvoiceLines(ctx context.Context, db execer, invoiceID string, lines []domain.InvoiceLine) ([]domain.InvoiceLine, error) {
	created := make([]domain.InvoiceLine, len(lines))
	for i, line := range lines {
		line.InvoiceID = invoiceID
		err := db.QueryRowContext(ctx, `
			INSERT INTO pos.invoice_items (invoice_id, line_no, product_id, product_name, quantity, price, total, is_gift, gift_reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, price, total
		`, invoiceID, i+1, line.ProductID, line.ProductName, line.Quantity, line.Price, line.Total, line.IsGift, line.GiftReason).Scan(&line.ID, &line.Price, &line.Total)
		if err != nil {
			switch {
			case isForeignKeyViolation(err):
				return nil, store.ErrNotFound
			case isCheckViolation(err):
				return nil, store.ErrInvalidInvoice
			}
			return nil, err
		}
		created[i] = line
	}
	return created, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514"
	}
	return false
}
