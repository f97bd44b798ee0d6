package importer

import (
	"context"
	"strings"
	"time"

	"github.com/JonMunkholm/stepimport/internal/core"
	"github.com/JonMunkholm/stepimport/internal/store"
)

// Coupon fields read from a mapped record.
const (
	FieldCouponCode     = "coupon_code"
	FieldAffiliateID    = "affiliate_id"
	FieldAffiliateEmail = "affiliate_email"
	FieldReferrals      = "referrals"
	FieldIntegration    = "integration"
	FieldOwner          = "owner"
	FieldExpirationDate = "expiration_date"
)

func init() {
	core.Register(core.ImporterDefinition{
		Info: core.ImporterInfo{
			Key:   "coupons",
			Label: "Coupons",
			Fields: []string{
				FieldCouponCode, FieldAffiliateID, FieldAffiliateEmail, FieldReferrals,
				FieldIntegration, FieldOwner, FieldStatus, FieldExpirationDate,
			},
		},
		New: func(db core.DBTX) core.EntityImporter {
			return NewCouponImporter(store.New(db))
		},
	})
}

// CouponStore is the persistence the coupon importer needs.
type CouponStore interface {
	AffiliateExists(ctx context.Context, affiliateID int64) (bool, error)
	AffiliateIDByEmail(ctx context.Context, email string) (int64, bool, error)
	ReferralAffiliates(ctx context.Context, ids []int64) (map[int64]int64, error)
	CouponExists(ctx context.Context, integration, code string) (bool, error)
	InsertCoupon(ctx context.Context, arg store.InsertCouponParams) (int64, error)
	TouchCacheGroup(ctx context.Context, group string, now time.Time) error
}

// CouponImporter creates coupons tied to an existing affiliate.
//
// A coupon is only stored with referrals that belong to its affiliate; a row
// none of whose referrals qualify is rejected. The progress counter advances
// by accepted rows only.
type CouponImporter struct {
	store CouponStore
	now   func() time.Time
}

func NewCouponImporter(s CouponStore) *CouponImporter {
	return &CouponImporter{store: s, now: time.Now}
}

func (c *CouponImporter) CountPolicy() core.CountPolicy { return core.CountAccepted }

func (c *CouponImporter) ImportRow(ctx context.Context, rec core.Record) (bool, error) {
	code := strings.TrimSpace(rec.Get(FieldCouponCode))
	if code == "" {
		return false, reject("row %d: coupon code is required", rec.Index)
	}

	affiliateID, err := c.resolveAffiliate(ctx, rec)
	if err != nil {
		return false, err
	}

	referralIDs, err := parseIDList(rec.Get(FieldReferrals))
	if err != nil {
		return false, reject("row %d: referrals: %v", rec.Index, err)
	}
	owners, err := c.store.ReferralAffiliates(ctx, referralIDs)
	if err != nil {
		return false, err
	}
	kept := make([]int64, 0, len(referralIDs))
	for _, id := range referralIDs {
		if owner, ok := owners[id]; ok && owner == affiliateID {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return false, reject("row %d: no referrals of affiliate %d", rec.Index, affiliateID)
	}

	params := store.InsertCouponParams{
		CouponCode:  code,
		AffiliateID: affiliateID,
		Referrals:   joinIDs(kept),
		Integration: strings.ToLower(strings.TrimSpace(rec.Get(FieldIntegration))),
	}
	if params.Owner, err = parseID(rec.Get(FieldOwner)); err != nil {
		return false, reject("row %d: owner: %v", rec.Index, err)
	}
	if params.Status, err = normalizeStatus(rec.Get(FieldStatus), "active", "active", "inactive"); err != nil {
		return false, reject("row %d: %v", rec.Index, err)
	}
	if params.ExpirationDate, err = parseTimestamp(rec.Get(FieldExpirationDate)); err != nil {
		return false, reject("row %d: %v", rec.Index, err)
	}

	exists, err := c.store.CouponExists(ctx, params.Integration, code)
	if err != nil {
		return false, err
	}
	if exists {
		return false, reject("row %d: coupon %s already exists", rec.Index, code)
	}

	if _, err := c.store.InsertCoupon(ctx, params); err != nil {
		return false, err
	}
	if err := c.store.TouchCacheGroup(ctx, store.CacheGroupCoupons, c.now()); err != nil {
		return false, err
	}
	return true, nil
}

// resolveAffiliate finds the coupon's affiliate by id, or by email when no
// id column is mapped.
func (c *CouponImporter) resolveAffiliate(ctx context.Context, rec core.Record) (int64, error) {
	id, err := parseID(rec.Get(FieldAffiliateID))
	if err != nil {
		return 0, reject("row %d: affiliate: %v", rec.Index, err)
	}

	if id == 0 {
		email := strings.TrimSpace(rec.Get(FieldAffiliateEmail))
		if email == "" {
			return 0, reject("row %d: affiliate id or email is required", rec.Index)
		}
		found, ok, err := c.store.AffiliateIDByEmail(ctx, email)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, reject("row %d: no affiliate with email %s", rec.Index, email)
		}
		return found, nil
	}

	exists, err := c.store.AffiliateExists(ctx, id)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, reject("row %d: affiliate %d does not exist", rec.Index, id)
	}
	return id, nil
}
