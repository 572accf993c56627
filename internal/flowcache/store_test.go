// internal/flowcache/store_test.go
package flowcache

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool {
	return f(v)
}

// anyArg accepts any value, used for generated IDs and timestamps.
var anyArg = ArgumentMatcherFunc(func(v interface{}) bool {
	return true
})

const sqlUpsertFragment = `
        INSERT INTO flow_fragments (id, site, start_url, end_url, steps, steps_hash, success_count, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7)
        ON CONFLICT (site, start_url, steps_hash, end_url) DO UPDATE SET
            success_count = flow_fragments.success_count + 1,
            updated_at = EXCLUDED.updated_at;
    `

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	store, err := NewStore(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return store, mockPool
}

func sampleFragment() schemas.FlowFragment {
	return schemas.FlowFragment{
		Site:     "shop.example",
		StartURL: "https://shop.example/",
		EndURL:   "https://shop.example/c/widgets",
		Steps: []schemas.FragmentStep{
			{Action: schemas.ActionClick, Target: "All Products"},
			{Action: schemas.ActionClick, Target: "Widgets"},
		},
	}
}

func TestNewStorePingFailure(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	pingErr := errors.New("database unavailable")
	mockPool.ExpectPing().WillReturnError(pingErr)

	_, err = NewStore(context.Background(), mockPool, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, pingErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	store, mockPool := newMockStore(t)

	mockPool.ExpectExec(flexibleSQLMatcher(schemaSQL)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveOrUpdateInsertsNewFragment(t *testing.T) {
	store, mockPool := newMockStore(t)
	frag := sampleFragment()

	mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertFragment)).
		WithArgs(anyArg, frag.Site, frag.StartURL, frag.EndURL, anyArg, stepsHash(frag.Steps), anyArg).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveOrUpdate(context.Background(), frag))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

// Recording the same tuple twice hits the conflict arm both times with the
// same identity hash; the statement is last-write idempotent.
func TestSaveOrUpdateIdempotentIdentity(t *testing.T) {
	store, mockPool := newMockStore(t)
	frag := sampleFragment()

	for i := 0; i < 2; i++ {
		mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertFragment)).
			WithArgs(anyArg, frag.Site, frag.StartURL, frag.EndURL, anyArg, stepsHash(frag.Steps), anyArg).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	require.NoError(t, store.SaveOrUpdate(context.Background(), frag))
	require.NoError(t, store.SaveOrUpdate(context.Background(), frag))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

// Case and spacing changes in targets must not change the identity hash,
// while a genuinely different step sequence must.
func TestStepsHashNormalization(t *testing.T) {
	a := []schemas.FragmentStep{{Action: schemas.ActionClick, Target: "All  Products"}}
	b := []schemas.FragmentStep{{Action: schemas.ActionClick, Target: "all products"}}
	c := []schemas.FragmentStep{{Action: schemas.ActionClick, Target: "Widgets"}}

	assert.Equal(t, stepsHash(a), stepsHash(b))
	assert.NotEqual(t, stepsHash(a), stepsHash(c))
}

func TestListBySite(t *testing.T) {
	store, mockPool := newMockStore(t)
	now := time.Now().UTC()
	stepsJSON := []byte(`[{"action":"CLICK","target":"Widgets"}]`)

	rows := pgxmock.NewRows([]string{
		"id", "site", "start_url", "end_url", "steps", "success_count", "created_at", "updated_at",
	}).AddRow(
		"0b6f2b1e-0000-0000-0000-000000000001", "shop.example",
		"https://shop.example/", "https://shop.example/c/widgets",
		stepsJSON, 3, now, now,
	)

	mockPool.ExpectQuery(flexibleSQLMatcher(`
        SELECT id, site, start_url, end_url, steps, success_count, created_at, updated_at
        FROM flow_fragments
        WHERE site = $1
        ORDER BY success_count DESC, updated_at DESC;
    `)).WithArgs("shop.example").WillReturnRows(rows)

	frags, err := store.ListBySite(context.Background(), "shop.example")
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, 3, frags[0].SuccessCount)
	require.Len(t, frags[0].Steps, 1)
	assert.Equal(t, schemas.ActionClick, frags[0].Steps[0].Action)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPrune(t *testing.T) {
	store, mockPool := newMockStore(t)
	cutoff := time.Now().Add(-30 * 24 * time.Hour)

	mockPool.ExpectExec(flexibleSQLMatcher(`
        DELETE FROM flow_fragments
        WHERE updated_at < $1 AND success_count < $2;
    `)).WithArgs(anyArg, 2).WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := store.Prune(context.Background(), cutoff, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRecorderSavesSuccessfulPrefixes(t *testing.T) {
	store, mockPool := newMockStore(t)
	rec := NewRecorder(store, zap.NewNop())

	step := func(target string) schemas.ExecutionStep {
		return schemas.ExecutionStep{Action: schemas.ActionClick, Target: target}
	}
	results := []schemas.ActionResult{
		{Step: step("All Products"), Success: true, After: schemas.PageState{URL: "https://shop.example/products"}},
		{Step: step("Widgets"), Success: true, After: schemas.PageState{URL: "https://shop.example/c/widgets"}},
		{Step: step("Blue Widget"), Success: true, After: schemas.PageState{URL: "https://shop.example/p/blue"}},
		{Step: step("Add to Cart"), Success: false},
		{Step: step("Checkout"), Success: true},
	}

	// Prefixes of length 2 and 3; the failure cuts recording before the
	// trailing success.
	mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertFragment)).
		WithArgs(anyArg, "shop.example", "https://shop.example/", "https://shop.example/c/widgets", anyArg, anyArg, anyArg).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertFragment)).
		WithArgs(anyArg, "shop.example", "https://shop.example/", "https://shop.example/p/blue", anyArg, anyArg, anyArg).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, rec.Record(context.Background(), "https://shop.example/", results))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRecorderSkipsShortRuns(t *testing.T) {
	store, mockPool := newMockStore(t)
	rec := NewRecorder(store, zap.NewNop())

	results := []schemas.ActionResult{
		{Step: schemas.ExecutionStep{Action: schemas.ActionClick, Target: "Only step"}, Success: true},
	}
	require.NoError(t, rec.Record(context.Background(), "https://shop.example/", results))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
