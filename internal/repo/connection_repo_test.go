package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case **string:
			if r.values[i] == nil {
				*p = nil
			} else {
				s := r.values[i].(string)
				*p = &s
			}
		}
	}
	return nil
}

type fakeQuerier struct {
	row  fakeRow
	args []any
}

func (q *fakeQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	q.args = args
	return q.row
}

func TestConnectionRepo_GetCredentials(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{values: []any{"conn-1", "https://blog.example.com", "editor", "secret"}}}
	r := NewConnectionRepo(q)

	creds, err := r.GetCredentials(context.Background(), "u1", "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-1", creds.ConnectionID)
	assert.Equal(t, "https://blog.example.com", creds.SiteURL)
	assert.Equal(t, "editor", creds.Username)
	assert.Equal(t, "secret", creds.ApplicationPassword)
	assert.Equal(t, []any{"conn-1", "u1"}, q.args)
}

func TestConnectionRepo_NullUsername(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{values: []any{"conn-1", "https://blog.example.com", nil, "secret"}}}
	creds, err := NewConnectionRepo(q).GetCredentials(context.Background(), "u1", "conn-1")
	require.NoError(t, err)
	assert.Empty(t, creds.Username)
}

func TestConnectionRepo_NotFound(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	_, err := NewConnectionRepo(q).GetCredentials(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	q = &fakeQuerier{row: fakeRow{err: errors.New("conn reset")}}
	_, err = NewConnectionRepo(q).GetCredentials(context.Background(), "u1", "conn-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNullString(t *testing.T) {
	assert.Nil(t, nullString(""))
	require.NotNil(t, nullString("x"))
	assert.Equal(t, "x", *nullString("x"))
	assert.Equal(t, "", derefString(nil))
}
