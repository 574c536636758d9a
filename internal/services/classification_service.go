package services

import (
	"context"
	"fmt"
	"time"

	"github.com/doc-capture/internal/codec"
	"github.com/doc-capture/internal/db/models"
	"github.com/doc-capture/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClassificationService owns plans, folders, content types and the
// folder/content associations.
type ClassificationService struct {
	db      *gorm.DB
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

func NewClassificationService(db *gorm.DB, logger *zap.Logger, metrics *metrics.MetricsCollector) *ClassificationService {
	return &ClassificationService{
		db:      db,
		logger:  logger.With(zap.String("service", "classification_service")),
		metrics: metrics,
	}
}

func (cs *ClassificationService) CreatePlan(ctx context.Context, in PlanInput) (*models.ClassificationPlan, error) {
	in.normalize()
	if err := validateInput(in); err != nil {
		return nil, err
	}

	plan := &models.ClassificationPlan{Name: in.Name, Description: in.Description, Active: true}
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUnique(ctx, tx, &models.ClassificationPlan{}, "name", in.Name, 0, "plan"); err != nil {
			return err
		}
		return translateError(tx.Create(plan).Error, "plan")
	})
	if err != nil {
		return nil, err
	}

	cs.metrics.IncrementCounter("plans_created", nil)
	cs.logger.Info("Plan created", zap.Uint("plan_id", plan.ID), zap.String("name", plan.Name))
	return plan, nil
}

func (cs *ClassificationService) ListPlans(ctx context.Context) ([]models.ClassificationPlan, error) {
	var plans []models.ClassificationPlan
	if err := cs.db.WithContext(ctx).Order("id").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (cs *ClassificationService) GetPlan(ctx context.Context, id uint) (*models.ClassificationPlan, error) {
	return findByID[models.ClassificationPlan](ctx, cs.db, id, "plan")
}

// DeletePlan removes the plan, every folder of the plan and their links.
func (cs *ClassificationService) DeletePlan(ctx context.Context, id uint) error {
	var removed int
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := findByID[models.ClassificationPlan](ctx, tx, id, "plan")
		if err != nil {
			return err
		}

		var folderIDs []uint
		if err := tx.Model(&models.Folder{}).Where("plan_id = ?", plan.ID).Pluck("id", &folderIDs).Error; err != nil {
			return err
		}
		if err := deleteFolders(tx, folderIDs); err != nil {
			return err
		}
		removed = len(folderIDs)
		return tx.Delete(plan).Error
	})
	if err != nil {
		return err
	}

	cs.logger.Info("Plan deleted", zap.Uint("plan_id", id), zap.Int("folders_removed", removed))
	return nil
}

// CreateFolder checks, in order: name free, plan present, parent present,
// parent in the same plan.
func (cs *ClassificationService) CreateFolder(ctx context.Context, in FolderInput) (*models.Folder, error) {
	in.normalize()
	if err := validateInput(in); err != nil {
		return nil, err
	}

	folder := &models.Folder{
		Name:           in.Name,
		Description:    in.Description,
		PlanID:         in.PlanID,
		ParentFolderID: in.ParentFolderID,
	}
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUnique(ctx, tx, &models.Folder{}, "name", in.Name, 0, "folder"); err != nil {
			return err
		}
		if _, err := findByID[models.ClassificationPlan](ctx, tx, in.PlanID, "plan"); err != nil {
			return err
		}
		if in.ParentFolderID != nil {
			parent, err := findByID[models.Folder](ctx, tx, *in.ParentFolderID, "parent folder")
			if err != nil {
				return err
			}
			if parent.PlanID != in.PlanID {
				return fmt.Errorf("%w: parent folder %d belongs to plan %d, not %d",
					ErrInvalidArgument, parent.ID, parent.PlanID, in.PlanID)
			}
		}
		return translateError(tx.Create(folder).Error, "folder")
	})
	if err != nil {
		return nil, err
	}

	cs.metrics.IncrementCounter("folders_created", nil)
	cs.logger.Info("Folder created",
		zap.Uint("folder_id", folder.ID),
		zap.Uint("plan_id", folder.PlanID),
		zap.String("name", folder.Name))
	return folder, nil
}

func (cs *ClassificationService) GetFolder(ctx context.Context, id uint) (*models.Folder, error) {
	return findByID[models.Folder](ctx, cs.db, id, "folder")
}

func (cs *ClassificationService) UpdateFolder(ctx context.Context, id uint, in FolderUpdate) (*models.Folder, error) {
	in.normalize()
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var folder *models.Folder
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		folder, err = findByID[models.Folder](ctx, tx, id, "folder")
		if err != nil {
			return err
		}
		if err := ensureUnique(ctx, tx, &models.Folder{}, "name", in.Name, id, "folder"); err != nil {
			return err
		}
		folder.Name = in.Name
		folder.Description = in.Description
		return translateError(tx.Model(folder).Updates(map[string]any{
			"name":        in.Name,
			"description": in.Description,
		}).Error, "folder")
	})
	if err != nil {
		return nil, err
	}
	return folder, nil
}

// DeleteFolder removes the folder and its whole subtree.
func (cs *ClassificationService) DeleteFolder(ctx context.Context, id uint) error {
	var removed int
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findByID[models.Folder](ctx, tx, id, "folder"); err != nil {
			return err
		}

		subtree := []uint{id}
		frontier := []uint{id}
		seen := map[uint]bool{id: true}
		for len(frontier) > 0 {
			var kids []uint
			if err := tx.Model(&models.Folder{}).Where("parent_folder_id IN ?", frontier).Pluck("id", &kids).Error; err != nil {
				return err
			}
			frontier = frontier[:0]
			for _, kid := range kids {
				if seen[kid] {
					continue
				}
				seen[kid] = true
				subtree = append(subtree, kid)
				frontier = append(frontier, kid)
			}
		}

		removed = len(subtree)
		return deleteFolders(tx, subtree)
	})
	if err != nil {
		return err
	}

	cs.logger.Info("Folder deleted", zap.Uint("folder_id", id), zap.Int("folders_removed", removed))
	return nil
}

func deleteFolders(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("folder_id IN ?", ids).Delete(&models.FolderContent{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Folder{}).Error
}

// CreateContent inserts the content type, then derives its identity payload
// from the new id. Both writes share one transaction.
func (cs *ClassificationService) CreateContent(ctx context.Context, in ContentInput) (*models.ContentType, error) {
	in.normalize()
	if err := validateInput(in); err != nil {
		return nil, err
	}

	content := &models.ContentType{Name: in.Name, Description: in.Description, Required: in.Required}
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUnique(ctx, tx, &models.ContentType{}, "name", in.Name, 0, "content type"); err != nil {
			return err
		}
		if err := tx.Create(content).Error; err != nil {
			return translateError(err, "content type")
		}
		if err := content.AssignIdentity(codec.Payload(content.ID)); err != nil {
			return err
		}
		return tx.Model(content).Update("identity_payload", content.IdentityPayload).Error
	})
	if err != nil {
		return nil, err
	}

	cs.metrics.IncrementCounter("contents_created", nil)
	cs.logger.Info("Content type created",
		zap.Uint("content_id", content.ID),
		zap.String("name", content.Name),
		zap.String("payload", content.IdentityPayload))
	return content, nil
}

func (cs *ClassificationService) ListContents(ctx context.Context) ([]models.ContentType, error) {
	var contents []models.ContentType
	if err := cs.db.WithContext(ctx).Order("id").Find(&contents).Error; err != nil {
		return nil, err
	}
	return contents, nil
}

func (cs *ClassificationService) GetContent(ctx context.Context, id uint) (*models.ContentType, error) {
	return findByID[models.ContentType](ctx, cs.db, id, "content type")
}

// UpdateContent never touches the identity payload.
func (cs *ClassificationService) UpdateContent(ctx context.Context, id uint, in ContentInput) (*models.ContentType, error) {
	in.normalize()
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var content *models.ContentType
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		content, err = findByID[models.ContentType](ctx, tx, id, "content type")
		if err != nil {
			return err
		}
		if err := ensureUnique(ctx, tx, &models.ContentType{}, "name", in.Name, id, "content type"); err != nil {
			return err
		}
		content.Name = in.Name
		content.Description = in.Description
		content.Required = in.Required
		return translateError(tx.Model(content).Updates(map[string]any{
			"name":        in.Name,
			"description": in.Description,
			"required":    in.Required,
		}).Error, "content type")
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

// DeleteContent refuses while captured pieces still reference the content type.
func (cs *ClassificationService) DeleteContent(ctx context.Context, id uint) error {
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		content, err := findByID[models.ContentType](ctx, tx, id, "content type")
		if err != nil {
			return err
		}
		var pieces int64
		if err := tx.Model(&models.Piece{}).Where("content_type_id = ?", id).Count(&pieces).Error; err != nil {
			return err
		}
		if pieces > 0 {
			return fmt.Errorf("%w: content type %d is referenced by %d pieces", ErrConflict, id, pieces)
		}
		if err := tx.Where("content_type_id = ?", id).Delete(&models.FolderContent{}).Error; err != nil {
			return err
		}
		return tx.Delete(content).Error
	})
	if err != nil {
		return err
	}

	cs.logger.Info("Content type deleted", zap.Uint("content_id", id))
	return nil
}

func (cs *ClassificationService) ListFolderContents(ctx context.Context, folderID uint) ([]models.ContentType, error) {
	if _, err := findByID[models.Folder](ctx, cs.db, folderID, "folder"); err != nil {
		return nil, err
	}
	return folderContents(cs.db.WithContext(ctx), folderID, false)
}

func folderContents(db *gorm.DB, folderID uint, requiredOnly bool) ([]models.ContentType, error) {
	query := db.Model(&models.ContentType{}).
		Joins("JOIN folder_contents ON folder_contents.content_type_id = content_types.id").
		Where("folder_contents.folder_id = ?", folderID)
	if requiredOnly {
		query = query.Where("content_types.required = ?", true)
	}
	var contents []models.ContentType
	if err := query.Order("content_types.id").Find(&contents).Error; err != nil {
		return nil, err
	}
	return contents, nil
}

// LinkContent attaches a content type to a folder. The composite key turns a
// second link, concurrent or not, into ErrConflict.
func (cs *ClassificationService) LinkContent(ctx context.Context, folderID, contentID uint) error {
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findByID[models.Folder](ctx, tx, folderID, "folder"); err != nil {
			return err
		}
		if _, err := findByID[models.ContentType](ctx, tx, contentID, "content type"); err != nil {
			return err
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.FolderContent{
			FolderID:      folderID,
			ContentTypeID: contentID,
			CreatedAt:     time.Now(),
		})
		if result.Error != nil {
			return translateError(result.Error, "link")
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: content type %d already linked to folder %d", ErrConflict, contentID, folderID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	cs.logger.Info("Content linked", zap.Uint("folder_id", folderID), zap.Uint("content_id", contentID))
	return nil
}

func (cs *ClassificationService) UnlinkContent(ctx context.Context, folderID, contentID uint) error {
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findByID[models.Folder](ctx, tx, folderID, "folder"); err != nil {
			return err
		}
		if _, err := findByID[models.ContentType](ctx, tx, contentID, "content type"); err != nil {
			return err
		}
		result := tx.Where("folder_id = ? AND content_type_id = ?", folderID, contentID).Delete(&models.FolderContent{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: content type %d is not linked to folder %d", ErrNotFound, contentID, folderID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	cs.logger.Info("Content unlinked", zap.Uint("folder_id", folderID), zap.Uint("content_id", contentID))
	return nil
}

// BuildTree returns the plan's folder forest with each folder's contents.
func (cs *ClassificationService) BuildTree(ctx context.Context, planID uint) ([]*FolderNode, error) {
	db := cs.db.WithContext(ctx)
	if _, err := findByID[models.ClassificationPlan](ctx, db, planID, "plan"); err != nil {
		return nil, err
	}

	var folders []models.Folder
	if err := db.Where("plan_id = ?", planID).Order("id").Find(&folders).Error; err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		return []*FolderNode{}, nil
	}

	folderIDs := make([]uint, len(folders))
	for i := range folders {
		folderIDs[i] = folders[i].ID
	}

	var links []models.FolderContent
	if err := db.Where("folder_id IN ?", folderIDs).Find(&links).Error; err != nil {
		return nil, err
	}

	contents := make(map[uint]*models.ContentType)
	if len(links) > 0 {
		ids := make([]uint, 0, len(links))
		for _, l := range links {
			ids = append(ids, l.ContentTypeID)
		}
		var rows []models.ContentType
		if err := db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			contents[rows[i].ID] = &rows[i]
		}
	}

	return assembleTree(folders, links, contents)
}
