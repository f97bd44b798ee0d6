package importer

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/JonMunkholm/stepimport/internal/core"
	"github.com/JonMunkholm/stepimport/internal/store"
)

// Affiliate fields read from a mapped record.
const (
	FieldEmail          = "email"
	FieldName           = "name"
	FieldPaymentEmail   = "payment_email"
	FieldRate           = "rate"
	FieldStatus         = "status"
	FieldDateRegistered = "date_registered"
)

func init() {
	core.Register(core.ImporterDefinition{
		Info: core.ImporterInfo{
			Key:   "affiliates",
			Label: "Affiliates",
			Fields: []string{
				FieldEmail, FieldName, FieldPaymentEmail,
				FieldRate, FieldStatus, FieldDateRegistered,
			},
		},
		New: func(db core.DBTX) core.EntityImporter {
			return NewAffiliateImporter(store.New(db))
		},
	})
}

// AffiliateStore is the persistence the affiliate importer needs.
type AffiliateStore interface {
	AffiliateIDByEmail(ctx context.Context, email string) (int64, bool, error)
	InsertAffiliate(ctx context.Context, arg store.InsertAffiliateParams) (int64, error)
	TouchCacheGroup(ctx context.Context, group string, now time.Time) error
}

// AffiliateImporter creates one affiliate per row. Rows whose email is
// already registered are rejected, so re-running a file does not duplicate
// affiliates.
//
// The progress counter advances by every attempted row: an affiliate file
// is usually re-exported from another system and skipped duplicates are
// still "done".
type AffiliateImporter struct {
	store AffiliateStore
	now   func() time.Time
}

func NewAffiliateImporter(s AffiliateStore) *AffiliateImporter {
	return &AffiliateImporter{store: s, now: time.Now}
}

func (a *AffiliateImporter) CountPolicy() core.CountPolicy { return core.CountAttempted }

func (a *AffiliateImporter) ImportRow(ctx context.Context, rec core.Record) (bool, error) {
	email := strings.TrimSpace(rec.Get(FieldEmail))
	if email == "" {
		return false, reject("row %d: email is required", rec.Index)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return false, reject("row %d: invalid email %q", rec.Index, email)
	}

	params := store.InsertAffiliateParams{
		Email:        email,
		Name:         rec.Get(FieldName),
		PaymentEmail: rec.Get(FieldPaymentEmail),
	}
	if params.PaymentEmail == "" {
		params.PaymentEmail = email
	}

	var err error
	if params.Rate, err = parseRate(rec.Get(FieldRate)); err != nil {
		return false, reject("row %d: %v", rec.Index, err)
	}
	if params.Status, err = normalizeStatus(rec.Get(FieldStatus), "active", "active", "inactive", "pending", "rejected"); err != nil {
		return false, reject("row %d: %v", rec.Index, err)
	}
	if params.DateRegistered, err = parseTimestamp(rec.Get(FieldDateRegistered)); err != nil {
		return false, reject("row %d: %v", rec.Index, err)
	}

	_, exists, err := a.store.AffiliateIDByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if exists {
		return false, reject("row %d: affiliate %s already exists", rec.Index, email)
	}

	if _, err := a.store.InsertAffiliate(ctx, params); err != nil {
		return false, err
	}
	if err := a.store.TouchCacheGroup(ctx, store.CacheGroupAffiliates, a.now()); err != nil {
		return false, err
	}
	return true, nil
}
