package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bankportal/backend/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresStore implements Store on top of database/sql and lib/pq.
type PostgresStore struct {
	db *sql.DB
	q  queryer
	tx *sql.Tx
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &PostgresStore{db: s.db, q: tx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}
	return nil
}

const accountColumns = `id, code, display_name, type, balance, is_active, owner_id, version, created_at, updated_at`

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	var accountType string
	err := row.Scan(&a.ID, &a.Code, &a.DisplayName, &accountType, &a.Balance,
		&a.IsActive, &a.OwnerID, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Type = models.AccountType(accountType)
	return &a, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (s *PostgresStore) GetAccountByCode(ctx context.Context, code string) (*models.Account, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code = $1`, code)
	return scanAccount(row)
}

func (s *PostgresStore) LockAccount(ctx context.Context, id int64) (*models.Account, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return scanAccount(row)
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	created := *account
	now := time.Now().UTC()
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO accounts (code, display_name, type, balance, is_active, owner_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)
		RETURNING id`,
		account.Code, account.DisplayName, string(account.Type), account.Balance,
		account.IsActive, account.OwnerID, now).Scan(&created.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, account.Code)
		}
		return nil, err
	}
	created.Version = 0
	created.CreatedAt = now
	created.UpdatedAt = now
	return &created, nil
}

func (s *PostgresStore) SaveAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	if account.ID == 0 {
		return s.CreateAccount(ctx, account)
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (id, code, display_name, type, balance, is_active, owner_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $8)
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name, type = EXCLUDED.type,
		    is_active = EXCLUDED.is_active, owner_id = EXCLUDED.owner_id, updated_at = EXCLUDED.updated_at`,
		account.ID, account.Code, account.DisplayName, string(account.Type), account.Balance,
		account.IsActive, account.OwnerID, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, account.Code)
		}
		return nil, err
	}
	return s.GetAccount(ctx, account.ID)
}

func (s *PostgresStore) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) DeleteAccount(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result, ErrNotFound)
}

func (s *PostgresStore) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal, version int) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		balance, time.Now().UTC(), id, version)
	if err != nil {
		return err
	}
	if err := expectOneRow(result, ErrOptimisticLock); err != nil {
		return fmt.Errorf("account %d: %w", id, err)
	}
	return nil
}

const entryColumns = `id, amount, kind, posted_at, fee, reference, description, balance_after, account_id, transfer_id, reverses_id`

func scanEntry(row rowScanner) (*models.Transaction, error) {
	var e models.Transaction
	var kind string
	var transferID, reversesID sql.NullInt64
	err := row.Scan(&e.ID, &e.Amount, &kind, &e.PostedAt, &e.Fee, &e.Reference,
		&e.Description, &e.BalanceAfter, &e.AccountID, &transferID, &reversesID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Kind = models.TransactionKind(kind)
	e.TransferID = nullableID(transferID)
	e.ReversesID = nullableID(reversesID)
	return &e, nil
}

func (s *PostgresStore) InsertEntry(ctx context.Context, entry *models.Transaction) (*models.Transaction, error) {
	inserted := *entry
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO transactions (amount, kind, posted_at, fee, reference, description, balance_after, account_id, transfer_id, reverses_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		entry.Amount, string(entry.Kind), entry.PostedAt, entry.Fee, entry.Reference,
		entry.Description, entry.BalanceAfter, entry.AccountID, entry.TransferID, entry.ReversesID).Scan(&inserted.ID)
	if err != nil {
		return nil, err
	}
	return &inserted, nil
}

func (s *PostgresStore) GetEntry(ctx context.Context, id int64) (*models.Transaction, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM transactions WHERE id = $1`, id)
	return scanEntry(row)
}

func (s *PostgresStore) GetEntryByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM transactions WHERE reference = $1`, reference)
	return scanEntry(row)
}

func (s *PostgresStore) FindReversal(ctx context.Context, entryID int64) (*models.Transaction, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM transactions WHERE reverses_id = $1`, entryID)
	return scanEntry(row)
}

func (s *PostgresStore) ListEntries(ctx context.Context, filter EntryFilter) ([]models.Transaction, error) {
	var conditions []string
	var args []any
	argIndex := 1

	if filter.AccountID != 0 {
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", argIndex))
		args = append(args, filter.AccountID)
		argIndex++
	}
	if filter.TransferID != 0 {
		conditions = append(conditions, fmt.Sprintf("transfer_id = $%d", argIndex))
		args = append(args, filter.TransferID)
		argIndex++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("posted_at >= $%d", argIndex))
		args = append(args, *filter.From)
		argIndex++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("posted_at <= $%d", argIndex))
		args = append(args, *filter.To)
		argIndex++
	}

	query := `SELECT ` + entryColumns + ` FROM transactions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY posted_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.Transaction{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) CountEntries(ctx context.Context, accountID int64) (int64, error) {
	var count int64
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID).Scan(&count)
	return count, err
}

const transferColumns = `id, amount, fee, source_code, destination_code, beneficiary_name, description, reference, status, status_reason, created_at, processed_at, source_account_id, destination_account_id`

func scanTransfer(row rowScanner) (*models.Transfer, error) {
	var t models.Transfer
	var status string
	var processedAt sql.NullTime
	var destinationID sql.NullInt64
	err := row.Scan(&t.ID, &t.Amount, &t.Fee, &t.SourceCode, &t.DestinationCode, &t.BeneficiaryName,
		&t.Description, &t.Reference, &status, &t.StatusReason, &t.CreatedAt, &processedAt,
		&t.SourceAccountID, &destinationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Status = models.TransferStatus(status)
	if processedAt.Valid {
		at := processedAt.Time
		t.ProcessedAt = &at
	}
	t.DestinationAccountID = nullableID(destinationID)
	return &t, nil
}

func (s *PostgresStore) InsertTransfer(ctx context.Context, transfer *models.Transfer) (*models.Transfer, error) {
	inserted := *transfer
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO transfers (amount, fee, source_code, destination_code, beneficiary_name, description, reference,
		                       status, status_reason, created_at, processed_at, source_account_id, destination_account_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		transfer.Amount, transfer.Fee, transfer.SourceCode, transfer.DestinationCode, transfer.BeneficiaryName,
		transfer.Description, transfer.Reference, string(transfer.Status), transfer.StatusReason,
		transfer.CreatedAt, transfer.ProcessedAt, transfer.SourceAccountID, transfer.DestinationAccountID).Scan(&inserted.ID)
	if err != nil {
		return nil, err
	}
	return &inserted, nil
}

func (s *PostgresStore) UpdateTransfer(ctx context.Context, transfer *models.Transfer) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE transfers
		SET status = $1, status_reason = $2, processed_at = $3
		WHERE id = $4`,
		string(transfer.Status), transfer.StatusReason, transfer.ProcessedAt, transfer.ID)
	if err != nil {
		return err
	}
	return expectOneRow(result, ErrNotFound)
}

func (s *PostgresStore) GetTransfer(ctx context.Context, id int64) (*models.Transfer, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id)
	return scanTransfer(row)
}

func (s *PostgresStore) LockTransfer(ctx context.Context, id int64) (*models.Transfer, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1 FOR UPDATE`, id)
	return scanTransfer(row)
}

func (s *PostgresStore) GetTransferByReference(ctx context.Context, reference string) (*models.Transfer, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM transfers WHERE reference = $1`, reference)
	return scanTransfer(row)
}

func (s *PostgresStore) ListTransfers(ctx context.Context, filter TransferFilter) ([]models.Transfer, error) {
	var conditions []string
	var args []any
	argIndex := 1

	if filter.AccountID != 0 {
		conditions = append(conditions, fmt.Sprintf("(source_account_id = $%d OR destination_account_id = $%d)", argIndex, argIndex))
		args = append(args, filter.AccountID)
		argIndex++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, string(filter.Status))
		argIndex++
	}

	query := `SELECT ` + transferColumns + ` FROM transfers`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := []models.Transfer{}
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}

func expectOneRow(result sql.Result, none error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return none
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
