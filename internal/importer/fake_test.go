package importer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/JonMunkholm/stepimport/internal/store"
)

// fakeStore is an in-memory stand-in for store.Queries.
type fakeStore struct {
	affiliates map[string]int64 // email -> id
	referrals  map[int64]int64  // referral id -> affiliate id
	coupons    map[string]bool  // integration/code

	insertedAffiliates []store.InsertAffiliateParams
	insertedCoupons    []store.InsertCouponParams
	touched            []string

	failInsert error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		affiliates: map[string]int64{"ann@example.com": 1, "bob@example.com": 2},
		referrals:  map[int64]int64{10: 1, 11: 1, 20: 2},
		coupons:    map[string]bool{"woocommerce/TAKEN": true},
	}
}

func (f *fakeStore) AffiliateExists(_ context.Context, id int64) (bool, error) {
	for _, v := range f.affiliates {
		if v == id {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) AffiliateIDByEmail(_ context.Context, email string) (int64, bool, error) {
	id, ok := f.affiliates[strings.ToLower(email)]
	return id, ok, nil
}

func (f *fakeStore) InsertAffiliate(_ context.Context, arg store.InsertAffiliateParams) (int64, error) {
	if f.failInsert != nil {
		return 0, f.failInsert
	}
	id := int64(len(f.affiliates) + 1)
	f.affiliates[strings.ToLower(arg.Email)] = id
	f.insertedAffiliates = append(f.insertedAffiliates, arg)
	return id, nil
}

func (f *fakeStore) ReferralAffiliates(_ context.Context, ids []int64) (map[int64]int64, error) {
	out := make(map[int64]int64)
	for _, id := range ids {
		if a, ok := f.referrals[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (f *fakeStore) CouponExists(_ context.Context, integration, code string) (bool, error) {
	return f.coupons[integration+"/"+code], nil
}

func (f *fakeStore) InsertCoupon(_ context.Context, arg store.InsertCouponParams) (int64, error) {
	if f.failInsert != nil {
		return 0, f.failInsert
	}
	f.coupons[arg.Integration+"/"+arg.CouponCode] = true
	f.insertedCoupons = append(f.insertedCoupons, arg)
	return int64(len(f.insertedCoupons)), nil
}

func (f *fakeStore) TouchCacheGroup(_ context.Context, group string, _ time.Time) error {
	f.touched = append(f.touched, group)
	return nil
}

var errDown = errors.New("connection refused")
