package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/portflow/portflow/internal/actorcontext"
	auditdomain "github.com/portflow/portflow/internal/audit/domain"
	auditrepo "github.com/portflow/portflow/internal/audit/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) auditdomain.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
	})
}

func TestRecord_CapturesActorContext(t *testing.T) {
	svc := newTestService(t)

	ctx := actorcontext.WithActorID(context.Background(), "ops-clerk")
	ctx = actorcontext.WithRequestID(ctx, "req-123")
	ctx = actorcontext.WithIPAddress(ctx, "10.0.0.7")

	targetID := "42"
	require.NoError(t, svc.Record(ctx, "debit_note.generated", "debit_note", &targetID, map[string]any{
		"debit_note_no": "DN-LCH-000001",
	}))

	entries, err := svc.ListByTarget(ctx, "debit_note", targetID)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "ops-clerk", entry.ActorID)
	assert.Equal(t, "debit_note.generated", entry.Action)
	assert.Equal(t, "DN-LCH-000001", entry.Metadata["debit_note_no"])
	assert.Equal(t, "req-123", entry.Metadata["request_id"])
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.7", *entry.IPAddress)
}

func TestRecord_Validation(t *testing.T) {
	svc := newTestService(t)

	err := svc.Record(context.Background(), "", "debit_note", nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)

	// Without an actor the entry falls back to the system identity.
	targetID := "7"
	require.NoError(t, svc.Record(context.Background(), "task_record.deleted", "task_record", &targetID, nil))
	entries, err := svc.ListByTarget(context.Background(), "task_record", targetID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, actorcontext.SystemActor, entries[0].ActorID)

	_, err = svc.ListByTarget(context.Background(), "", "7")
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTarget)
}
