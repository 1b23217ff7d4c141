package service

import (
	"context"
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/pkg/monitoring"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createAttachment(t *testing.T, db *gorm.DB, moduleID uint, temporary bool, uploadedAt time.Time) *model.Attachment {
	t.Helper()
	a := &model.Attachment{
		ModuleID:   moduleID,
		OwnerType:  model.OwnerChapter,
		OwnerID:    1,
		Path:       "modules/test.pdf",
		FileType:   model.FilePDF,
		Temporary:  temporary,
		UploadedAt: uploadedAt,
	}
	require.NoError(t, db.Create(a).Error)
	return a
}

func TestSweeperRemovesOnlyExpiredTemporaries(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewAttachmentRepository(db)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper := NewSweeper(repo, time.Hour, 24*time.Hour, 3)
	sweeper.Now = func() time.Time { return now }

	expired := createAttachment(t, db, 1, true, now.Add(-25*time.Hour))
	fresh := createAttachment(t, db, 1, true, now.Add(-time.Hour))
	permanent := createAttachment(t, db, 1, false, now.Add(-48*time.Hour))
	expiredOther := createAttachment(t, db, 2, true, now.Add(-30*time.Hour))

	sweeper.RunOnce()

	var ids []uint
	require.NoError(t, db.Model(&model.Attachment{}).Pluck("id", &ids).Error)
	assert.ElementsMatch(t, []uint{fresh.ID, permanent.ID}, ids)
	assert.NotContains(t, ids, expired.ID)
	assert.NotContains(t, ids, expiredOther.ID)
}

func TestSweeperKeepsEverythingInsideRetentionWindow(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewAttachmentRepository(db)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper := NewSweeper(repo, time.Hour, 24*time.Hour, 3)
	sweeper.Now = func() time.Time { return now }

	createAttachment(t, db, 1, true, now.Add(-23*time.Hour))
	createAttachment(t, db, 1, true, now)

	sweeper.RunOnce()

	var count int64
	require.NoError(t, db.Model(&model.Attachment{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestSweeperRunOnceIsIdempotentWhenNothingPending(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewAttachmentRepository(db)

	sweeper := NewSweeper(repo, time.Hour, 24*time.Hour, 3)
	sweeper.RunOnce()
	sweeper.RunOnce()
}

// flakyScanStore 前 failures 次扫描返回错误，之后透传给真实仓储
type flakyScanStore struct {
	SweepStore
	calls    int
	failures int
}

func (s *flakyScanStore) ModuleIDsWithTemporary(ctx context.Context) ([]uint, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("storage unavailable")
	}
	return s.SweepStore.ModuleIDsWithTemporary(ctx)
}

// brokenModuleStore 指定模块的清理始终失败，其余模块正常
type brokenModuleStore struct {
	SweepStore
	failModule uint
}

func (s *brokenModuleStore) DeleteExpiredTemporary(ctx context.Context, moduleID uint, cutoff time.Time) (int64, error) {
	if moduleID == s.failModule {
		return 0, errors.New("module table locked")
	}
	return s.SweepStore.DeleteExpiredTemporary(ctx, moduleID, cutoff)
}

func TestSweeperAbandonsCycleAfterRetryLimit(t *testing.T) {
	db := setupTestDB(t)
	store := &flakyScanStore{SweepStore: repository.NewAttachmentRepository(db), failures: 10}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper := NewSweeper(store, time.Hour, 24*time.Hour, 0)
	sweeper.Now = func() time.Time { return now }

	expired := createAttachment(t, db, 1, true, now.Add(-48*time.Hour))

	failuresBefore := testutil.ToFloat64(monitoring.SweepFailures)
	sweeper.RunOnce()

	// 重试上限之后放弃本轮，不再继续探测
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, failuresBefore+1, testutil.ToFloat64(monitoring.SweepFailures))

	var count int64
	require.NoError(t, db.Model(&model.Attachment{}).Where("id = ?", expired.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSweeperRetriesScanWithBackoff(t *testing.T) {
	db := setupTestDB(t)
	store := &flakyScanStore{SweepStore: repository.NewAttachmentRepository(db), failures: 1}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper := NewSweeper(store, time.Hour, 24*time.Hour, 2)
	sweeper.Now = func() time.Time { return now }

	expired := createAttachment(t, db, 1, true, now.Add(-48*time.Hour))

	sweeper.RunOnce()

	assert.Equal(t, 2, store.calls)
	var count int64
	require.NoError(t, db.Model(&model.Attachment{}).Where("id = ?", expired.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSweeperSkipsFailingModule(t *testing.T) {
	db := setupTestDB(t)
	store := &brokenModuleStore{SweepStore: repository.NewAttachmentRepository(db), failModule: 1}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper := NewSweeper(store, time.Hour, 24*time.Hour, 3)
	sweeper.Now = func() time.Time { return now }

	stuck := createAttachment(t, db, 1, true, now.Add(-48*time.Hour))
	swept := createAttachment(t, db, 2, true, now.Add(-48*time.Hour))

	sweeper.RunOnce()

	// 坏模块不中断其余模块的清理
	var ids []uint
	require.NoError(t, db.Model(&model.Attachment{}).Pluck("id", &ids).Error)
	assert.ElementsMatch(t, []uint{stuck.ID}, ids)
	assert.NotContains(t, ids, swept.ID)
}

func TestSweeperStartStop(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewAttachmentRepository(db)

	now := time.Now()
	createAttachment(t, db, 1, true, now.Add(-48*time.Hour))

	sweeper := NewSweeper(repo, time.Hour, 24*time.Hour, 3)
	sweeper.Start()
	defer sweeper.Stop()

	// 启动时立即执行一轮，积压的过期临时文件被清掉
	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&model.Attachment{}).Where("temporary = ?", true).Count(&count)
		return count == 0
	}, 2*time.Second, 20*time.Millisecond)
}
