package access_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/access-engine/access"
	"github.com/warp/access-engine/access/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	svc   *access.Service
	codes *store.Memory
	audit *store.MemoryAudit
}

// newFixture wires a service over in-memory stores with a fixed clock.
// The stores are shared so tests can re-wire a second service at a later
// clock against the same data.
func newFixture(at time.Time) fixture {
	codes := store.NewMemory()
	audit := store.NewMemoryAudit()
	svc := access.NewService(codes, audit, nil, access.FixedClock{At: at})
	return fixture{svc: svc, codes: codes, audit: audit}
}

// advance returns a service over the same stores with the clock moved.
func (f fixture) advance(at time.Time) *access.Service {
	return access.NewService(f.codes, f.audit, nil, access.FixedClock{At: at})
}

func mustCreate(t *testing.T, svc *access.Service, p access.CreateParams) access.Code {
	t.Helper()
	if p.AssignedTo == "" {
		p.AssignedTo = "Alice"
	}
	if p.Email == "" {
		p.Email = "alice@example.com"
	}
	if p.ExpiryDays == 0 {
		p.ExpiryDays = 30
	}
	if p.Uses == 0 {
		p.Uses = 100
	}
	if p.AccessLevel == "" {
		p.AccessLevel = access.LevelStandard
	}
	c, err := svc.CreateCode(context.Background(), p)
	require.NoError(t, err)
	return c
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateCode_Success(t *testing.T) {
	// GIVEN: Valid creation parameters
	// WHEN: Creating a code
	// THEN: The record is stored active with all uses remaining and an
	//       expiry measured from the creation instant

	f := newFixture(testNow)
	ctx := context.Background()

	c, err := f.svc.CreateCode(ctx, access.CreateParams{
		AssignedTo:  "Alice",
		Email:       "alice@example.com",
		ExpiryDays:  30,
		Uses:        5,
		AccessLevel: access.LevelAdmin,
		Notes:       "site survey",
	})
	require.NoError(t, err)

	assert.Len(t, c.Code, access.DefaultCodeLength)
	assert.Equal(t, "Alice", c.AssignedTo)
	assert.Equal(t, access.LevelAdmin, c.AccessLevel)
	assert.Equal(t, testNow, c.CreatedAt)
	assert.Equal(t, testNow.AddDate(0, 0, 30), c.ExpiresAt)
	assert.Equal(t, 5, c.TotalUses)
	assert.Equal(t, 5, c.UsesLeft)
	assert.Equal(t, access.StoredActive, c.Status)
	assert.Nil(t, c.LastUsedAt)

	stored, err := f.codes.Get(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, c.Code, stored.Code)
}

func TestCreateCode_Validation(t *testing.T) {
	f := newFixture(testNow)
	ctx := context.Background()

	valid := access.CreateParams{
		AssignedTo:  "Alice",
		Email:       "alice@example.com",
		ExpiryDays:  30,
		Uses:        100,
		AccessLevel: access.LevelStandard,
	}

	cases := []struct {
		name   string
		mutate func(*access.CreateParams)
	}{
		{"missing assigned_to", func(p *access.CreateParams) { p.AssignedTo = "" }},
		{"missing email", func(p *access.CreateParams) { p.Email = "" }},
		{"expiry too short", func(p *access.CreateParams) { p.ExpiryDays = 0 }},
		{"expiry too long", func(p *access.CreateParams) { p.ExpiryDays = 366 }},
		{"zero uses", func(p *access.CreateParams) { p.Uses = 0 }},
		{"too many uses", func(p *access.CreateParams) { p.Uses = 1001 }},
		{"unknown level", func(p *access.CreateParams) { p.AccessLevel = "root" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			_, err := f.svc.CreateCode(ctx, p)
			assert.ErrorIs(t, err, access.ErrInvalidArgument)
		})
	}

	// Boundary values are accepted
	p := valid
	p.ExpiryDays, p.Uses = access.MaxExpiryDays, access.MaxUses
	_, err := f.svc.CreateCode(ctx, p)
	assert.NoError(t, err)
}

// =============================================================================
// REDEEM
// =============================================================================

func TestValidateAndRedeem_FullLifecycle(t *testing.T) {
	// GIVEN: A code for Alice with two uses
	// WHEN: Redeeming three times
	// THEN: Two grants with a decrementing remaining count, then an
	//       exhausted denial, with every attempt in the audit log

	f := newFixture(testNow)
	ctx := context.Background()
	c := mustCreate(t, f.svc, access.CreateParams{Uses: 2})

	grant, err := f.svc.ValidateAndRedeem(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, "Alice", grant.UserName)
	assert.Equal(t, access.LevelStandard, grant.AccessLevel)
	assert.True(t, grant.Permissions.CanUploadImages)
	assert.False(t, grant.Permissions.CanAccessAdmin)
	assert.Equal(t, 1, grant.UsesLeft)

	grant, err = f.svc.ValidateAndRedeem(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, 0, grant.UsesLeft)

	_, err = f.svc.ValidateAndRedeem(ctx, c.Code)
	denied, ok := access.IsDenied(err)
	require.True(t, ok)
	assert.Equal(t, access.ReasonExhausted, denied.Reason)
	assert.Equal(t, "Access code has no remaining uses", denied.Message())

	events, err := f.audit.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	// Newest first
	assert.Equal(t, access.ActionDenied, events[0].Action)
	assert.Equal(t, access.ReasonExhausted, events[0].Reason)
	assert.Equal(t, access.ActionLogin, events[1].Action)
	assert.Equal(t, access.ActionLogin, events[2].Action)
	assert.Equal(t, "Alice", events[0].User)

	stored, err := f.codes.Get(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.UsesLeft)
	require.NotNil(t, stored.LastUsedAt)
	assert.Equal(t, testNow, *stored.LastUsedAt)
}

func TestValidateAndRedeem_CaseInsensitive(t *testing.T) {
	// GIVEN: A stored code
	// WHEN: Redeeming with different casing and surrounding whitespace
	// THEN: The lookup still matches

	f := newFixture(testNow)
	c := mustCreate(t, f.svc, access.CreateParams{})

	lower := "  " + strings.ToLower(c.Code) + " "
	grant, err := f.svc.ValidateAndRedeem(context.Background(), lower)
	require.NoError(t, err)
	assert.Equal(t, "Alice", grant.UserName)
}

func TestValidateAndRedeem_UnknownCode(t *testing.T) {
	// GIVEN: No such code exists
	// WHEN: Redeeming
	// THEN: A not_found denial with the generic message, and the attempt
	//       is still audited

	f := newFixture(testNow)
	ctx := context.Background()

	_, err := f.svc.ValidateAndRedeem(ctx, "NOSUCH99")
	denied, ok := access.IsDenied(err)
	require.True(t, ok)
	assert.Equal(t, access.ReasonNotFound, denied.Reason)
	assert.Equal(t, "Invalid access code", denied.Message())

	events, err := f.audit.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, access.ActionDenied, events[0].Action)
	assert.Equal(t, "NOSUCH99", events[0].Code)
	assert.Equal(t, "", events[0].User)
}

func TestValidateAndRedeem_Expired(t *testing.T) {
	// GIVEN: A code created with a 30 day expiry
	// WHEN: Redeeming 31 days later
	// THEN: An expired denial, and no use is consumed

	f := newFixture(testNow)
	ctx := context.Background()
	c := mustCreate(t, f.svc, access.CreateParams{ExpiryDays: 30})

	later := f.advance(testNow.AddDate(0, 0, 31))
	_, err := later.ValidateAndRedeem(ctx, c.Code)
	denied, ok := access.IsDenied(err)
	require.True(t, ok)
	assert.Equal(t, access.ReasonExpired, denied.Reason)

	stored, err := f.codes.Get(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, stored.TotalUses, stored.UsesLeft)
}

func TestValidateAndRedeem_Disabled(t *testing.T) {
	f := newFixture(testNow)
	ctx := context.Background()
	c := mustCreate(t, f.svc, access.CreateParams{})

	require.NoError(t, f.svc.DisableCode(ctx, c.Code))

	_, err := f.svc.ValidateAndRedeem(ctx, c.Code)
	denied, ok := access.IsDenied(err)
	require.True(t, ok)
	assert.Equal(t, access.ReasonDisabled, denied.Reason)
	assert.Equal(t, "Access code has been disabled", denied.Message())
}

func TestValidateAndRedeem_Concurrent_ExactlyFiveGrants(t *testing.T) {
	// GIVEN: A code with 5 uses and 25 concurrent redemption attempts
	// WHEN: All attempts race
	// THEN: Exactly 5 succeed, the rest are exhausted denials, and the
	//       stored remaining count lands at exactly zero

	f := newFixture(testNow)
	ctx := context.Background()
	c := mustCreate(t, f.svc, access.CreateParams{Uses: 5})

	const attempts = 25
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.ValidateAndRedeem(ctx, c.Code)
		}(i)
	}
	wg.Wait()

	granted, exhausted := 0, 0
	for _, err := range results {
		if err == nil {
			granted++
			continue
		}
		denied, ok := access.IsDenied(err)
		require.True(t, ok, "unexpected error: %v", err)
		require.Equal(t, access.ReasonExhausted, denied.Reason)
		exhausted++
	}
	assert.Equal(t, 5, granted)
	assert.Equal(t, attempts-5, exhausted)

	stored, err := f.codes.Get(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.UsesLeft)

	logins := 0
	events, err := f.audit.Recent(ctx, 0)
	require.NoError(t, err)
	for _, e := range events {
		if e.Action == access.ActionLogin {
			logins++
		}
	}
	assert.Equal(t, 5, logins)
}

// =============================================================================
// ADMIN OPERATIONS
// =============================================================================

func TestDisableCode_Idempotent(t *testing.T) {
	// GIVEN: A disabled code
	// WHEN: Disabling it again
	// THEN: The call succeeds and the code stays disabled

	f := newFixture(testNow)
	ctx := context.Background()
	c := mustCreate(t, f.svc, access.CreateParams{})

	require.NoError(t, f.svc.DisableCode(ctx, c.Code))
	require.NoError(t, f.svc.DisableCode(ctx, c.Code))

	got, err := f.svc.GetCode(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, access.StatusDisabled, got.DerivedStatus)
}

func TestDisableCode_NotFound(t *testing.T) {
	f := newFixture(testNow)
	err := f.svc.DisableCode(context.Background(), "NOSUCH99")
	assert.ErrorIs(t, err, access.ErrNotFound)
}

func TestUpdateCode_Patch(t *testing.T) {
	// GIVEN: An existing code
	// WHEN: Patching assignee, notes, expiry, and extra uses
	// THEN: Only the patched fields change and both use counters grow

	f := newFixture(testNow)
	ctx := context.Background()
	c := mustCreate(t, f.svc, access.CreateParams{Uses: 10})

	newOwner := "Bob"
	newNotes := "handed over"
	newExpiry := c.ExpiresAt.AddDate(0, 0, 15)
	addUses := 5
	updated, err := f.svc.UpdateCode(ctx, c.Code, access.UpdatePatch{
		AssignedTo: &newOwner,
		Notes:      &newNotes,
		ExpiresAt:  &newExpiry,
		AddUses:    &addUses,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bob", updated.AssignedTo)
	assert.Equal(t, "alice@example.com", updated.Email)
	assert.Equal(t, "handed over", updated.Notes)
	assert.Equal(t, newExpiry, updated.ExpiresAt)
	assert.Equal(t, 15, updated.TotalUses)
	assert.Equal(t, 15, updated.UsesLeft)
}

func TestUpdateCode_ExpiryMayOnlyExtend(t *testing.T) {
	f := newFixture(testNow)
	ctx := context.Background()
	c := mustCreate(t, f.svc, access.CreateParams{})

	earlier := c.ExpiresAt.AddDate(0, 0, -5)
	_, err := f.svc.UpdateCode(ctx, c.Code, access.UpdatePatch{ExpiresAt: &earlier})
	assert.ErrorIs(t, err, access.ErrInvalidArgument)

	same := c.ExpiresAt
	_, err = f.svc.UpdateCode(ctx, c.Code, access.UpdatePatch{ExpiresAt: &same})
	assert.ErrorIs(t, err, access.ErrInvalidArgument)
}

func TestUpdateCode_AddUsesMustBePositive(t *testing.T) {
	f := newFixture(testNow)
	c := mustCreate(t, f.svc, access.CreateParams{})

	neg := -1
	_, err := f.svc.UpdateCode(context.Background(), c.Code, access.UpdatePatch{AddUses: &neg})
	assert.ErrorIs(t, err, access.ErrInvalidArgument)
}

func TestUpdateCode_ReactivateIsExplicit(t *testing.T) {
	// GIVEN: A disabled code
	// WHEN: Patching unrelated fields, then patching with Reactivate
	// THEN: Only the explicit reactivation restores the code

	f := newFixture(testNow)
	ctx := context.Background()
	c := mustCreate(t, f.svc, access.CreateParams{})
	require.NoError(t, f.svc.DisableCode(ctx, c.Code))

	notes := "still disabled"
	_, err := f.svc.UpdateCode(ctx, c.Code, access.UpdatePatch{Notes: &notes})
	require.NoError(t, err)

	got, err := f.svc.GetCode(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, access.StatusDisabled, got.DerivedStatus)

	on := true
	_, err = f.svc.UpdateCode(ctx, c.Code, access.UpdatePatch{Reactivate: &on})
	require.NoError(t, err)

	got, err = f.svc.GetCode(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, access.StatusActive, got.DerivedStatus)

	_, err = f.svc.ValidateAndRedeem(ctx, c.Code)
	assert.NoError(t, err)
}

// =============================================================================
// READ VIEWS
// =============================================================================

func TestListCodes_AnnotatedStatus(t *testing.T) {
	// GIVEN: Three codes: one active, one disabled, one created with a
	//        short expiry that has since passed
	// WHEN: Listing at a later instant
	// THEN: Each record carries its derived status, in creation order

	f := newFixture(testNow)
	ctx := context.Background()

	a := mustCreate(t, f.svc, access.CreateParams{AssignedTo: "Alice", ExpiryDays: 30})
	b := mustCreate(t, f.svc, access.CreateParams{AssignedTo: "Bob", ExpiryDays: 30})
	c := mustCreate(t, f.svc, access.CreateParams{AssignedTo: "Carol", ExpiryDays: 1})
	require.NoError(t, f.svc.DisableCode(ctx, b.Code))

	later := f.advance(testNow.AddDate(0, 0, 2))
	list, err := later.ListCodes(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, a.Code, list[0].Code.Code)
	assert.Equal(t, access.StatusActive, list[0].DerivedStatus)
	assert.Equal(t, b.Code, list[1].Code.Code)
	assert.Equal(t, access.StatusDisabled, list[1].DerivedStatus)
	assert.Equal(t, c.Code, list[2].Code.Code)
	assert.Equal(t, access.StatusExpired, list[2].DerivedStatus)
}

func TestGetLogs_FilterAndLimit(t *testing.T) {
	// GIVEN: A mixed history of logins and denials across two codes
	// WHEN: Querying with code, action, and limit filters
	// THEN: Only matching events return, newest first

	f := newFixture(testNow)
	ctx := context.Background()

	a := mustCreate(t, f.svc, access.CreateParams{AssignedTo: "Alice", Uses: 3})
	b := mustCreate(t, f.svc, access.CreateParams{AssignedTo: "Bob", Uses: 1})

	_, err := f.svc.ValidateAndRedeem(ctx, a.Code)
	require.NoError(t, err)
	_, err = f.svc.ValidateAndRedeem(ctx, a.Code)
	require.NoError(t, err)
	_, err = f.svc.ValidateAndRedeem(ctx, b.Code)
	require.NoError(t, err)
	_, err = f.svc.ValidateAndRedeem(ctx, b.Code) // exhausted
	require.Error(t, err)

	all, err := f.svc.GetLogs(ctx, 0, access.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	aliceOnly, err := f.svc.GetLogs(ctx, 0, access.EventFilter{Code: a.Code})
	require.NoError(t, err)
	assert.Len(t, aliceOnly, 2)

	deniedOnly, err := f.svc.GetLogs(ctx, 0, access.EventFilter{Action: access.ActionDenied})
	require.NoError(t, err)
	require.Len(t, deniedOnly, 1)
	assert.Equal(t, b.Code, deniedOnly[0].Code)

	limited, err := f.svc.GetLogs(ctx, 2, access.EventFilter{})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, access.ActionDenied, limited[0].Action)
}

func TestGetStats(t *testing.T) {
	// GIVEN: Two codes, one fully consumed
	// WHEN: Aggregating stats
	// THEN: Counts, unique users, and utilization reflect the population

	f := newFixture(testNow)
	ctx := context.Background()

	a := mustCreate(t, f.svc, access.CreateParams{AssignedTo: "Alice", Uses: 2})
	mustCreate(t, f.svc, access.CreateParams{AssignedTo: "Bob", Uses: 2})

	_, err := f.svc.ValidateAndRedeem(ctx, a.Code)
	require.NoError(t, err)
	_, err = f.svc.ValidateAndRedeem(ctx, a.Code)
	require.NoError(t, err)

	stats, err := f.svc.GetStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalCodes)
	assert.Equal(t, 1, stats.ActiveCodes)
	assert.Equal(t, 1, stats.ExhaustedCodes)
	assert.Equal(t, 2, stats.TotalLogins)
	assert.Equal(t, 1, stats.UniqueUsers)
	assert.Equal(t, "0.5", stats.Utilization) // 2 of 4 issued uses consumed
}
