// Package store holds the SQL for the affiliate, referral and coupon tables
// the importers write to, and the schema migrations.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/stepimport/internal/core"
)

// Cache groups bumped after writes so readers drop cached lists.
const (
	CacheGroupAffiliates = "affiliates"
	CacheGroupCoupons    = "coupons"
)

// Queries runs statements against a pool or transaction.
type Queries struct {
	db core.DBTX
}

func New(db core.DBTX) *Queries {
	return &Queries{db: db}
}

const affiliateExists = `SELECT EXISTS (SELECT 1 FROM affiliates WHERE affiliate_id = $1)`

func (q *Queries) AffiliateExists(ctx context.Context, affiliateID int64) (bool, error) {
	var exists bool
	if err := q.db.QueryRow(ctx, affiliateExists, affiliateID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check affiliate %d: %w", affiliateID, err)
	}
	return exists, nil
}

const affiliateIDByEmail = `SELECT affiliate_id FROM affiliates WHERE lower(email) = lower($1)`

// AffiliateIDByEmail returns the id of the affiliate registered with email.
// found is false when there is none.
func (q *Queries) AffiliateIDByEmail(ctx context.Context, email string) (id int64, found bool, err error) {
	err = q.db.QueryRow(ctx, affiliateIDByEmail, email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find affiliate by email: %w", err)
	}
	return id, true, nil
}

// InsertAffiliateParams are the columns written for a new affiliate.
type InsertAffiliateParams struct {
	Email          string
	Name           string
	PaymentEmail   string
	Rate           pgtype.Numeric
	Status         string
	DateRegistered pgtype.Timestamptz
}

const insertAffiliate = `
INSERT INTO affiliates (email, name, payment_email, rate, status, date_registered)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
RETURNING affiliate_id`

func (q *Queries) InsertAffiliate(ctx context.Context, arg InsertAffiliateParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, insertAffiliate,
		arg.Email,
		arg.Name,
		arg.PaymentEmail,
		arg.Rate,
		arg.Status,
		arg.DateRegistered,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert affiliate: %w", err)
	}
	return id, nil
}

const referralAffiliates = `SELECT referral_id, affiliate_id FROM referrals WHERE referral_id = ANY($1)`

// ReferralAffiliates maps each existing referral in ids to its affiliate.
// Unknown referral ids are absent from the result.
func (q *Queries) ReferralAffiliates(ctx context.Context, ids []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := q.db.Query(ctx, referralAffiliates, ids)
	if err != nil {
		return nil, fmt.Errorf("load referrals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var referralID, affiliateID int64
		if err := rows.Scan(&referralID, &affiliateID); err != nil {
			return nil, fmt.Errorf("scan referral: %w", err)
		}
		result[referralID] = affiliateID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load referrals: %w", err)
	}
	return result, nil
}

const couponExists = `SELECT EXISTS (SELECT 1 FROM coupons WHERE integration = $1 AND coupon_code = $2)`

func (q *Queries) CouponExists(ctx context.Context, integration, code string) (bool, error) {
	var exists bool
	if err := q.db.QueryRow(ctx, couponExists, integration, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("check coupon %s: %w", code, err)
	}
	return exists, nil
}

// InsertCouponParams are the columns written for a new coupon.
type InsertCouponParams struct {
	CouponCode     string
	AffiliateID    int64
	Referrals      string
	Integration    string
	Owner          int64
	Status         string
	ExpirationDate pgtype.Timestamptz
}

const insertCoupon = `
INSERT INTO coupons (coupon_code, affiliate_id, referrals, integration, owner, status, expiration_date)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING coupon_id`

func (q *Queries) InsertCoupon(ctx context.Context, arg InsertCouponParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, insertCoupon,
		arg.CouponCode,
		arg.AffiliateID,
		arg.Referrals,
		arg.Integration,
		arg.Owner,
		arg.Status,
		arg.ExpirationDate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert coupon: %w", err)
	}
	return id, nil
}

const touchCacheGroup = `
INSERT INTO cache_versions (cache_group, last_changed)
VALUES ($1, $2)
ON CONFLICT (cache_group) DO UPDATE SET last_changed = EXCLUDED.last_changed`

// TouchCacheGroup records that group changed at now.
func (q *Queries) TouchCacheGroup(ctx context.Context, group string, now time.Time) error {
	if _, err := q.db.Exec(ctx, touchCacheGroup, group, now); err != nil {
		return fmt.Errorf("touch cache group %s: %w", group, err)
	}
	return nil
}
