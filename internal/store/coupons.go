package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Coupon is a stored coupon row.
type Coupon struct {
	CouponID       int64              `json:"coupon_id"`
	CouponCode     string             `json:"coupon_code"`
	AffiliateID    int64              `json:"affiliate_id"`
	Referrals      string             `json:"referrals"`
	Integration    string             `json:"integration"`
	Owner          int64              `json:"owner"`
	Status         string             `json:"status"`
	ExpirationDate pgtype.Timestamptz `json:"expiration_date"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Coupon statuses. A filter with any other status matches active coupons.
const (
	CouponActive   = "active"
	CouponInactive = "inactive"
)

// CouponFilter narrows ListCoupons and CountCoupons. Zero fields match
// every coupon.
type CouponFilter struct {
	CouponIDs    []int64
	AffiliateIDs []int64
	Owners       []int64
	Integration  string
	Status       string

	// OrderBy names a coupon column; unknown names fall back to coupon_id.
	OrderBy string
	Desc    bool
	// Limit < 1 returns every match.
	Limit  int
	Offset int
}

var couponSortColumns = map[string]bool{
	"coupon_id":       true,
	"coupon_code":     true,
	"affiliate_id":    true,
	"integration":     true,
	"owner":           true,
	"status":          true,
	"expiration_date": true,
	"created_at":      true,
}

func (f CouponFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if len(f.CouponIDs) > 0 {
		add("coupon_id = ANY($%d)", f.CouponIDs)
	}
	if len(f.AffiliateIDs) > 0 {
		add("affiliate_id = ANY($%d)", f.AffiliateIDs)
	}
	if f.Integration != "" {
		add("integration = $%d", f.Integration)
	}
	if len(f.Owners) > 0 {
		add("owner = ANY($%d)", f.Owners)
	}
	if f.Status != "" {
		status := f.Status
		if status != CouponActive && status != CouponInactive {
			status = CouponActive
		}
		add("status = $%d", status)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (f CouponFilter) order() string {
	col := "coupon_id"
	if couponSortColumns[f.OrderBy] {
		col = f.OrderBy
	}
	if f.Desc {
		return " ORDER BY " + col + " DESC"
	}
	return " ORDER BY " + col + " ASC"
}

const listCoupons = `
SELECT coupon_id, coupon_code, affiliate_id, referrals, integration, owner, status, expiration_date, created_at
FROM coupons`

// ListCoupons returns the coupons matching f.
func (q *Queries) ListCoupons(ctx context.Context, f CouponFilter) ([]Coupon, error) {
	where, args := f.where()
	query := listCoupons + where + f.order()
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []Coupon
	for rows.Next() {
		var c Coupon
		if err := rows.Scan(
			&c.CouponID,
			&c.CouponCode,
			&c.AffiliateID,
			&c.Referrals,
			&c.Integration,
			&c.Owner,
			&c.Status,
			&c.ExpirationDate,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	return coupons, nil
}

const countCoupons = `SELECT count(*) FROM coupons`

// CountCoupons returns how many coupons match f, ignoring its paging.
func (q *Queries) CountCoupons(ctx context.Context, f CouponFilter) (int64, error) {
	where, args := f.where()

	var n int64
	if err := q.db.QueryRow(ctx, countCoupons+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count coupons: %w", err)
	}
	return n, nil
}
