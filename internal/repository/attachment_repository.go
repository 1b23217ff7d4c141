package repository

import (
	"context"
	"time"

	"edu_platform_backend/internal/model"

	"gorm.io/gorm"
)

type AttachmentRepository struct {
	DB *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{DB: db}
}

func (r *AttachmentRepository) Create(a *model.Attachment) error {
	return r.DB.Create(a).Error
}

func (r *AttachmentRepository) FindByID(id uint) (*model.Attachment, error) {
	var a model.Attachment
	err := r.DB.First(&a, id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByOwner 列出容器下的附件。读取侧传 includeTemporary=false，
// 未保存的临时文件对读请求不可见。
func (r *AttachmentRepository) ListByOwner(ownerType string, ownerID uint, includeTemporary bool) ([]model.Attachment, error) {
	var as []model.Attachment
	query := r.DB.Where("owner_type = ? AND owner_id = ?", ownerType, ownerID)
	if !includeTemporary {
		query = query.Where("temporary = ?", false)
	}
	err := query.Order("uploaded_at asc").Find(&as).Error
	return as, err
}

func (r *AttachmentRepository) ListByModule(moduleID uint) ([]model.Attachment, error) {
	var as []model.Attachment
	err := r.DB.Where("module_id = ?", moduleID).Find(&as).Error
	return as, err
}

// PromoteOwnerFiles 保存容器：列表内的附件全部转正（无论之前是否临时），
// 列表外的从容器移除。keep 为 nil 表示请求未携带文件字段，附件原样保留。
func (r *AttachmentRepository) PromoteOwnerFiles(ownerType string, ownerID uint, keep []uint) error {
	if keep == nil {
		return nil
	}
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if len(keep) == 0 {
			return tx.Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
				Delete(&model.Attachment{}).Error
		}
		if err := tx.Model(&model.Attachment{}).
			Where("owner_type = ? AND owner_id = ? AND id IN ?", ownerType, ownerID, keep).
			Update("temporary", false).Error; err != nil {
			return err
		}
		return tx.Where("owner_type = ? AND owner_id = ? AND id NOT IN ?", ownerType, ownerID, keep).
			Delete(&model.Attachment{}).Error
	})
}

// CountTemporaryByModule 统计模块下未保存的临时附件数
func (r *AttachmentRepository) CountTemporaryByModule(moduleID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Attachment{}).
		Where("module_id = ? AND temporary = ?", moduleID, true).
		Count(&count).Error
	return count, err
}

// DeleteTemporaryByModule 清掉模块下全部临时附件，返回删除数
func (r *AttachmentRepository) DeleteTemporaryByModule(moduleID uint) (int64, error) {
	result := r.DB.Where("module_id = ? AND temporary = ?", moduleID, true).
		Delete(&model.Attachment{})
	return result.RowsAffected, result.Error
}

func (r *AttachmentRepository) DeleteByOwner(ownerType string, ownerID uint) error {
	return r.DB.Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Delete(&model.Attachment{}).Error
}

func (r *AttachmentRepository) DeleteByModule(moduleID uint) error {
	return r.DB.Where("module_id = ?", moduleID).Delete(&model.Attachment{}).Error
}

// ModuleIDsWithTemporary 找出存在临时附件的模块，供清理任务遍历
func (r *AttachmentRepository) ModuleIDsWithTemporary(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Attachment{}).
		Where("temporary = ?", true).
		Distinct().Pluck("module_id", &ids).Error
	return ids, err
}

// DeleteExpiredTemporary 删除某模块下上传时间早于 cutoff 的临时附件，
// 只动过期的，窗口内的可能还在编辑会话中使用
func (r *AttachmentRepository) DeleteExpiredTemporary(ctx context.Context, moduleID uint, cutoff time.Time) (int64, error) {
	result := r.DB.WithContext(ctx).
		Where("module_id = ? AND temporary = ? AND uploaded_at < ?", moduleID, true, cutoff).
		Delete(&model.Attachment{})
	return result.RowsAffected, result.Error
}
