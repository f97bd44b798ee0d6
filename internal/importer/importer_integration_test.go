//go:build integration

package importer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stepimport/internal/core"
	"github.com/JonMunkholm/stepimport/internal/progress"
	"github.com/JonMunkholm/stepimport/internal/source"
	"github.com/JonMunkholm/stepimport/internal/store"
	"github.com/JonMunkholm/stepimport/internal/store/storetest"
)

func drive(t *testing.T, exec *core.Executor, entity, batchID, csv string, mapping core.FieldMapping) core.DriveSummary {
	t.Helper()

	src, err := source.Parse(strings.NewReader(csv))
	require.NoError(t, err)

	sum, err := core.Drive(context.Background(), exec, core.Session{
		BatchID:    batchID,
		Entity:     entity,
		Source:     src,
		PerStep:    2,
		Mapping:    mapping,
		Permission: core.AllowAll,
	}, core.DriveOptions{})
	require.NoError(t, err)
	return sum
}

func TestImportAffiliatesThenCoupons(t *testing.T) {
	pool := storetest.NewPostgres(t)
	ctx := context.Background()
	progressStore := progress.NewPostgres(pool)

	affiliates := "Email,Name\nann@example.com,Ann\nbob@example.com,Bob\nann@example.com,Duplicate\n"
	affDef, err := core.Lookup("affiliates")
	require.NoError(t, err)

	var finished []string
	hook := func(_ context.Context, batchID string) error {
		finished = append(finished, batchID)
		return nil
	}

	sum := drive(t, core.NewExecutor(progressStore, affDef.New(pool), core.WithCompletionHook(hook)),
		"affiliates", "aff-batch", affiliates, core.FieldMapping{
			{Column: "Email", Field: FieldEmail},
			{Column: "Name", Field: FieldName},
		})
	assert.Equal(t, 2, sum.Accepted)
	assert.Equal(t, 1, sum.Rejected)
	assert.Equal(t, 100.0, sum.Last.Percent, "attempted rows count toward progress")

	q := store.New(pool)
	annID, ok, err := q.AffiliateIDByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	bobID, ok, err := q.AffiliateIDByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.True(t, ok)

	insertReferral := func(affiliateID int64) int64 {
		var id int64
		require.NoError(t, pool.QueryRow(ctx,
			`INSERT INTO referrals (affiliate_id) VALUES ($1) RETURNING referral_id`, affiliateID).Scan(&id))
		return id
	}
	annRef := insertReferral(annID)
	bobRef := insertReferral(bobID)

	coupons := fmt.Sprintf("Code,Affiliate,Referrals,Integration\n"+
		"ANN10,ann@example.com,\"%d,%d\",woo\n"+
		"BOB10,bob@example.com,%d,woo\n"+
		"ANN10,ann@example.com,%d,woo\n"+
		"NOREF,bob@example.com,%d,woo\n",
		annRef, bobRef, bobRef, annRef, annRef)

	coupDef, err := core.Lookup("coupons")
	require.NoError(t, err)
	exec := core.NewExecutor(progressStore, coupDef.New(pool), core.WithCompletionHook(hook))

	sum = drive(t, exec, "coupons", "coupon-batch", coupons, core.FieldMapping{
		{Column: "Code", Field: FieldCouponCode},
		{Column: "Affiliate", Field: FieldAffiliateEmail},
		{Column: "Referrals", Field: FieldReferrals},
		{Column: "Integration", Field: FieldIntegration},
	})
	assert.Equal(t, 2, sum.Accepted)
	assert.Equal(t, 2, sum.Rejected)
	assert.Equal(t, 50.0, sum.Last.Percent, "only accepted rows count toward progress")
	assert.True(t, sum.Last.Done)

	var referrals string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT referrals FROM coupons WHERE coupon_code = 'ANN10'`).Scan(&referrals))
	assert.Equal(t, fmt.Sprint(annRef), referrals, "referrals of other affiliates are dropped")

	assert.Equal(t, []string{"aff-batch", "coupon-batch"}, finished)
	for _, batch := range finished {
		p, err := exec.Progress(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, core.StateUnstarted, p.State, "counters removed by finish")
	}
}
