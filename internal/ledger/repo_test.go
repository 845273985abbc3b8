package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pumpmusic/backend/pkg/db/models"
	"github.com/pumpmusic/backend/pkg/enums"
	"github.com/pumpmusic/backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Account{}, &models.LedgerEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func seedAccount(t *testing.T, conn *gorm.DB, balance int) uuid.UUID {
	t.Helper()
	account := models.Account{Balance: balance, IsActive: true}
	if err := conn.Create(&account).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return account.ID
}

func TestDebitBalanceRefusesOverdraft(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(conn)
	accountID := seedAccount(t, conn, 2)

	ok, err := repo.DebitBalance(ctx, accountID, 1)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !ok {
		t.Fatal("expected first debit to succeed")
	}

	ok, err = repo.DebitBalance(ctx, accountID, 2)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if ok {
		t.Fatal("expected overdraft debit to be refused")
	}

	balance, err := repo.CurrentBalance(ctx, accountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 1 {
		t.Fatalf("expected balance 1, got %d", balance)
	}
}

func TestDebitBalanceUnknownAccount(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repo := NewRepository(conn)

	ok, err := repo.DebitBalance(context.Background(), uuid.New(), 1)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if ok {
		t.Fatal("expected debit against unknown account to be refused")
	}
}

func TestTransitionStatusIsConditional(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(conn)
	accountID := seedAccount(t, conn, 5)

	entry := &models.LedgerEntry{
		AccountID: accountID,
		Amount:    -1,
		Kind:      enums.LedgerEntryKindUsage,
		Status:    enums.LedgerEntryStatePending,
		Reference: "job-1",
	}
	if err := repo.Append(ctx, entry); err != nil {
		t.Fatalf("append: %v", err)
	}

	moved, err := repo.TransitionStatus(ctx, entry.ID, enums.LedgerEntryStatePending, enums.LedgerEntryStateSettled)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !moved {
		t.Fatal("expected pending entry to settle")
	}

	moved, err = repo.TransitionStatus(ctx, entry.ID, enums.LedgerEntryStatePending, enums.LedgerEntryStateReversed)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if moved {
		t.Fatal("expected settled entry to stay settled")
	}
}

func TestTransitionStatusRejectsIllegalMove(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repo := NewRepository(conn)

	if _, err := repo.TransitionStatus(context.Background(), uuid.New(), enums.LedgerEntryStateSettled, enums.LedgerEntryStateReversed); err == nil {
		t.Fatal("expected illegal transition error")
	}
}

func TestAppendValidatesEntry(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(conn)
	accountID := seedAccount(t, conn, 1)

	if err := repo.Append(ctx, &models.LedgerEntry{AccountID: accountID, Amount: 0, Kind: enums.LedgerEntryKindUsage, Status: enums.LedgerEntryStatePending}); err == nil {
		t.Fatal("expected zero amount to be rejected")
	}
	if err := repo.Append(ctx, &models.LedgerEntry{AccountID: accountID, Amount: -1, Kind: "bogus", Status: enums.LedgerEntryStatePending}); err == nil {
		t.Fatal("expected invalid kind to be rejected")
	}
}

func TestFinalizedSumMatchesBalanceAtRest(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(conn)
	accountID := seedAccount(t, conn, 0)

	if _, err := repo.CreditBalance(ctx, accountID, 5); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := repo.Append(ctx, &models.LedgerEntry{
		AccountID: accountID,
		Amount:    5,
		Kind:      enums.LedgerEntryKindPurchase,
		Status:    enums.LedgerEntryStateSettled,
		Reference: "pack:starter",
	}); err != nil {
		t.Fatalf("append purchase: %v", err)
	}

	// settled usage
	if _, err := repo.DebitBalance(ctx, accountID, 1); err != nil {
		t.Fatalf("debit: %v", err)
	}
	usage := &models.LedgerEntry{
		AccountID: accountID,
		Amount:    -1,
		Kind:      enums.LedgerEntryKindUsage,
		Status:    enums.LedgerEntryStateSettled,
		Reference: "job-ok",
	}
	if err := repo.Append(ctx, usage); err != nil {
		t.Fatalf("append usage: %v", err)
	}

	// reversed usage plus its settled refund
	if _, err := repo.DebitBalance(ctx, accountID, 1); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if err := repo.Append(ctx, &models.LedgerEntry{
		AccountID: accountID,
		Amount:    -1,
		Kind:      enums.LedgerEntryKindUsage,
		Status:    enums.LedgerEntryStateReversed,
		Reference: "job-failed",
	}); err != nil {
		t.Fatalf("append reversed usage: %v", err)
	}
	if _, err := repo.CreditBalance(ctx, accountID, 1); err != nil {
		t.Fatalf("credit back: %v", err)
	}
	if err := repo.Append(ctx, &models.LedgerEntry{
		AccountID: accountID,
		Amount:    1,
		Kind:      enums.LedgerEntryKindRefund,
		Status:    enums.LedgerEntryStateSettled,
		Reference: "job-failed",
	}); err != nil {
		t.Fatalf("append refund: %v", err)
	}

	balance, err := repo.CurrentBalance(ctx, accountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	sum, err := repo.FinalizedSum(ctx, accountID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if balance != 4 || sum != 4 {
		t.Fatalf("expected balance and finalized sum of 4, got balance=%d sum=%d", balance, sum)
	}
}

func TestHistoryPaginatesNewestFirst(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(conn)
	accountID := seedAccount(t, conn, 0)

	for i := 0; i < 25; i++ {
		entry := &models.LedgerEntry{
			AccountID: accountID,
			Amount:    1,
			Kind:      enums.LedgerEntryKindReward,
			Status:    enums.LedgerEntryStateSettled,
			Reference: "seed",
		}
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	pageOne, total, err := repo.History(ctx, accountID, pagination.Params{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("history page 1: %v", err)
	}
	pageTwo, _, err := repo.History(ctx, accountID, pagination.Params{Page: 2, PageSize: 10})
	if err != nil {
		t.Fatalf("history page 2: %v", err)
	}

	if total != 25 {
		t.Fatalf("expected total 25, got %d", total)
	}
	if len(pageOne) != 10 || len(pageTwo) != 10 {
		t.Fatalf("expected 10 entries per page, got %d and %d", len(pageOne), len(pageTwo))
	}

	seen := map[uuid.UUID]bool{}
	for _, entry := range append(pageOne, pageTwo...) {
		if seen[entry.ID] {
			t.Fatalf("entry %s appeared on both pages", entry.ID)
		}
		seen[entry.ID] = true
	}
}
