package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bankportal/backend/internal/models"
	"github.com/shopspring/decimal"
)

type memoryData struct {
	accounts  map[int64]models.Account
	entries   map[int64]models.Transaction
	transfers map[int64]models.Transfer

	nextAccountID  int64
	nextEntryID    int64
	nextTransferID int64
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		accounts:       make(map[int64]models.Account, len(d.accounts)),
		entries:        make(map[int64]models.Transaction, len(d.entries)),
		transfers:      make(map[int64]models.Transfer, len(d.transfers)),
		nextAccountID:  d.nextAccountID,
		nextEntryID:    d.nextEntryID,
		nextTransferID: d.nextTransferID,
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	for k, v := range d.entries {
		c.entries[k] = v
	}
	for k, v := range d.transfers {
		c.transfers[k] = v
	}
	return c
}

// MemoryStore is an in-process Store used by tests and local runs.
// Units of work are serialized by a single mutex and applied to a copy
// of the data that replaces the original only on success.
type MemoryStore struct {
	mu   sync.Mutex
	data *memoryData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memoryData{
		accounts:  make(map[int64]models.Account),
		entries:   make(map[int64]models.Transaction),
		transfers: make(map[int64]models.Transfer),
	}}
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(ctx, &memoryTx{data: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

// run executes a single write in its own unit of work.
func (s *MemoryStore) run(ctx context.Context, fn func(tx *memoryTx) error) error {
	return s.WithTx(ctx, func(_ context.Context, tx Tx) error {
		return fn(tx.(*memoryTx))
	})
}

// view executes a single read against the live data. Reads return copies,
// so nothing needs to be cloned.
func (s *MemoryStore) view(ctx context.Context, fn func(tx *memoryTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memoryTx{data: s.data})
}

func (s *MemoryStore) GetAccount(ctx context.Context, id int64) (a *models.Account, err error) {
	err = s.view(ctx, func(tx *memoryTx) error { a, err = tx.GetAccount(ctx, id); return err })
	return a, err
}

func (s *MemoryStore) GetAccountByCode(ctx context.Context, code string) (a *models.Account, err error) {
	err = s.view(ctx, func(tx *memoryTx) error { a, err = tx.GetAccountByCode(ctx, code); return err })
	return a, err
}

func (s *MemoryStore) CreateAccount(ctx context.Context, account *models.Account) (a *models.Account, err error) {
	err = s.run(ctx, func(tx *memoryTx) error { a, err = tx.CreateAccount(ctx, account); return err })
	return a, err
}

func (s *MemoryStore) SaveAccount(ctx context.Context, account *models.Account) (a *models.Account, err error) {
	err = s.run(ctx, func(tx *memoryTx) error { a, err = tx.SaveAccount(ctx, account); return err })
	return a, err
}

func (s *MemoryStore) ExistsByCode(ctx context.Context, code string) (ok bool, err error) {
	err = s.view(ctx, func(tx *memoryTx) error { ok, err = tx.ExistsByCode(ctx, code); return err })
	return ok, err
}

func (s *MemoryStore) ListAccounts(ctx context.Context) (out []models.Account, err error) {
	err = s.view(ctx, func(tx *memoryTx) error { out, err = tx.ListAccounts(ctx); return err })
	return out, err
}

func (s *MemoryStore) DeleteAccount(ctx context.Context, id int64) error {
	return s.run(ctx, func(tx *memoryTx) error { return tx.DeleteAccount(ctx, id) })
}

func (s *MemoryStore) LockAccount(ctx context.Context, id int64) (a *models.Account, err error) {
	err = s.run(ctx, func(tx *memoryTx) error { a, err = tx.LockAccount(ctx, id); return err })
	return a, err
}

func (s *MemoryStore) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal, version int) error {
	return s.run(ctx, func(tx *memoryTx) error { return tx.UpdateBalance(ctx, id, balance, version) })
}

func (s *MemoryStore) InsertEntry(ctx context.Context, entry *models.Transaction) (e *models.Transaction, err error) {
	err = s.run(ctx, func(tx *memoryTx) error { e, err = tx.InsertEntry(ctx, entry); return err })
	return e, err
}

func (s *MemoryStore) GetEntry(ctx context.Context, id int64) (e *models.Transaction, err error) {
	err = s.view(ctx, func(tx *memoryTx) error { e, err = tx.GetEntry(ctx, id); return err })
	return e, err
}

func (s *MemoryStore) GetEntryByReference(ctx context.Context, reference string) (e *models.Transaction, err error) {
	err = s.view(ctx, func(tx *memoryTx) error { e, err = tx.GetEntryByReference(ctx, reference); return err })
	return e, err
}

func (s *MemoryStore) FindReversal(ctx context.Context, entryID int64) (e *models.Transaction, err error) {
	err = s.view(ctx, func(tx *memoryTx) error { e, err = tx.FindReversal(ctx, entryID); return err })
	return e, err
}

func (s *MemoryStore) ListEntries(ctx context.Context, filter EntryFilter) (out []models.Transaction, err error) {
	err = s.view(ctx, func(tx *memoryTx) error { out, err = tx.ListEntries(ctx, filter); return err })
	return out, err
}

func (s *MemoryStore) CountEntries(ctx context.Context, accountID int64) (n int64, err error) {
	err = s.view(ctx, func(tx *memoryTx) error { n, err = tx.CountEntries(ctx, accountID); return err })
	return n, err
}

func (s *MemoryStore) InsertTransfer(ctx context.Context, transfer *models.Transfer) (t *models.Transfer, err error) {
	err = s.run(ctx, func(tx *memoryTx) error { t, err = tx.InsertTransfer(ctx, transfer); return err })
	return t, err
}

func (s *MemoryStore) UpdateTransfer(ctx context.Context, transfer *models.Transfer) error {
	return s.run(ctx, func(tx *memoryTx) error { return tx.UpdateTransfer(ctx, transfer) })
}

func (s *MemoryStore) GetTransfer(ctx context.Context, id int64) (t *models.Transfer, err error) {
	err = s.view(ctx, func(tx *memoryTx) error { t, err = tx.GetTransfer(ctx, id); return err })
	return t, err
}

func (s *MemoryStore) LockTransfer(ctx context.Context, id int64) (t *models.Transfer, err error) {
	err = s.run(ctx, func(tx *memoryTx) error { t, err = tx.LockTransfer(ctx, id); return err })
	return t, err
}

func (s *MemoryStore) GetTransferByReference(ctx context.Context, reference string) (t *models.Transfer, err error) {
	err = s.view(ctx, func(tx *memoryTx) error { t, err = tx.GetTransferByReference(ctx, reference); return err })
	return t, err
}

func (s *MemoryStore) ListTransfers(ctx context.Context, filter TransferFilter) (out []models.Transfer, err error) {
	err = s.view(ctx, func(tx *memoryTx) error { out, err = tx.ListTransfers(ctx, filter); return err })
	return out, err
}

// memoryTx operates on a private copy of the data owned by one WithTx call.
type memoryTx struct {
	data *memoryData
}

func (tx *memoryTx) GetAccount(_ context.Context, id int64) (*models.Account, error) {
	a, ok := tx.data.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (tx *memoryTx) GetAccountByCode(_ context.Context, code string) (*models.Account, error) {
	for _, a := range tx.data.accounts {
		if a.Code == code {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (tx *memoryTx) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	if exists, _ := tx.ExistsByCode(ctx, account.Code); exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, account.Code)
	}
	tx.data.nextAccountID++
	now := time.Now().UTC()
	created := *account
	created.ID = tx.data.nextAccountID
	created.Version = 0
	created.CreatedAt = now
	created.UpdatedAt = now
	tx.data.accounts[created.ID] = created
	return &created, nil
}

func (tx *memoryTx) SaveAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	existing, ok := tx.data.accounts[account.ID]
	if account.ID == 0 || !ok {
		return tx.CreateAccount(ctx, account)
	}
	existing.DisplayName = account.DisplayName
	existing.Type = account.Type
	existing.IsActive = account.IsActive
	existing.OwnerID = account.OwnerID
	existing.UpdatedAt = time.Now().UTC()
	tx.data.accounts[existing.ID] = existing
	return &existing, nil
}

func (tx *memoryTx) ExistsByCode(_ context.Context, code string) (bool, error) {
	for _, a := range tx.data.accounts {
		if a.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) ListAccounts(_ context.Context) ([]models.Account, error) {
	accounts := make([]models.Account, 0, len(tx.data.accounts))
	for _, a := range tx.data.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (tx *memoryTx) DeleteAccount(_ context.Context, id int64) error {
	if _, ok := tx.data.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(tx.data.accounts, id)
	return nil
}

// LockAccount needs no extra locking; the whole unit of work is serialized.
func (tx *memoryTx) LockAccount(ctx context.Context, id int64) (*models.Account, error) {
	return tx.GetAccount(ctx, id)
}

func (tx *memoryTx) UpdateBalance(_ context.Context, id int64, balance decimal.Decimal, version int) error {
	a, ok := tx.data.accounts[id]
	if !ok || a.Version != version {
		return fmt.Errorf("account %d: %w", id, ErrOptimisticLock)
	}
	a.Balance = balance
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	tx.data.accounts[id] = a
	return nil
}

func (tx *memoryTx) InsertEntry(_ context.Context, entry *models.Transaction) (*models.Transaction, error) {
	for _, e := range tx.data.entries {
		if e.Reference == entry.Reference {
			return nil, fmt.Errorf("duplicate entry reference %s", entry.Reference)
		}
		if entry.ReversesID != nil && e.ReversesID != nil && *e.ReversesID == *entry.ReversesID {
			return nil, fmt.Errorf("entry %d already reversed", *entry.ReversesID)
		}
	}
	tx.data.nextEntryID++
	inserted := *entry
	inserted.ID = tx.data.nextEntryID
	tx.data.entries[inserted.ID] = inserted
	return &inserted, nil
}

func (tx *memoryTx) GetEntry(_ context.Context, id int64) (*models.Transaction, error) {
	e, ok := tx.data.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (tx *memoryTx) GetEntryByReference(_ context.Context, reference string) (*models.Transaction, error) {
	for _, e := range tx.data.entries {
		if e.Reference == reference {
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

func (tx *memoryTx) FindReversal(_ context.Context, entryID int64) (*models.Transaction, error) {
	for _, e := range tx.data.entries {
		if e.ReversesID != nil && *e.ReversesID == entryID {
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

func (tx *memoryTx) ListEntries(_ context.Context, filter EntryFilter) ([]models.Transaction, error) {
	entries := []models.Transaction{}
	for _, e := range tx.data.entries {
		if filter.AccountID != 0 && e.AccountID != filter.AccountID {
			continue
		}
		if filter.TransferID != 0 && (e.TransferID == nil || *e.TransferID != filter.TransferID) {
			continue
		}
		if filter.From != nil && e.PostedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.PostedAt.After(*filter.To) {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].PostedAt.Equal(entries[j].PostedAt) {
			return entries[i].PostedAt.After(entries[j].PostedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}

func (tx *memoryTx) CountEntries(_ context.Context, accountID int64) (int64, error) {
	var n int64
	for _, e := range tx.data.entries {
		if e.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) InsertTransfer(_ context.Context, transfer *models.Transfer) (*models.Transfer, error) {
	for _, t := range tx.data.transfers {
		if t.Reference == transfer.Reference {
			return nil, fmt.Errorf("duplicate transfer reference %s", transfer.Reference)
		}
	}
	tx.data.nextTransferID++
	inserted := *transfer
	inserted.ID = tx.data.nextTransferID
	tx.data.transfers[inserted.ID] = inserted
	return &inserted, nil
}

func (tx *memoryTx) UpdateTransfer(_ context.Context, transfer *models.Transfer) error {
	t, ok := tx.data.transfers[transfer.ID]
	if !ok {
		return ErrNotFound
	}
	t.Status = transfer.Status
	t.StatusReason = transfer.StatusReason
	t.ProcessedAt = transfer.ProcessedAt
	tx.data.transfers[t.ID] = t
	return nil
}

func (tx *memoryTx) GetTransfer(_ context.Context, id int64) (*models.Transfer, error) {
	t, ok := tx.data.transfers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (tx *memoryTx) LockTransfer(ctx context.Context, id int64) (*models.Transfer, error) {
	return tx.GetTransfer(ctx, id)
}

func (tx *memoryTx) GetTransferByReference(_ context.Context, reference string) (*models.Transfer, error) {
	for _, t := range tx.data.transfers {
		if t.Reference == reference {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (tx *memoryTx) ListTransfers(_ context.Context, filter TransferFilter) ([]models.Transfer, error) {
	transfers := []models.Transfer{}
	for _, t := range tx.data.transfers {
		if filter.AccountID != 0 && t.SourceAccountID != filter.AccountID &&
			(t.DestinationAccountID == nil || *t.DestinationAccountID != filter.AccountID) {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		transfers = append(transfers, t)
	}
	sort.Slice(transfers, func(i, j int) bool {
		if !transfers[i].CreatedAt.Equal(transfers[j].CreatedAt) {
			return transfers[i].CreatedAt.After(transfers[j].CreatedAt)
		}
		return transfers[i].ID > transfers[j].ID
	})
	if filter.Limit > 0 && len(transfers) > filter.Limit {
		transfers = transfers[:filter.Limit]
	}
	return transfers, nil
}
