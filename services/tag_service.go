package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"speech-practice/models"

	"gorm.io/gorm"
)

type TagService struct {
	DB *gorm.DB
}

func NewTagService(db *gorm.DB) *TagService {
	return &TagService{DB: db}
}

type TagWithCount struct {
	models.Tag
	SpeechCount int64 `json:"speech_count"`
}

type TagFilter struct {
	Category string
	Search   string
	Page     int
	PageSize int
}

type TagPage struct {
	Items      []TagWithCount `json:"items"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

const tagCountColumn = "(SELECT COUNT(*) FROM speech_tags WHERE speech_tags.tag_id = tags.id) AS speech_count"

func (s *TagService) ListTags(ctx context.Context, f TagFilter) (*TagPage, error) {
	page, size, err := normalizePage(f.Page, f.PageSize)
	if err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	filtered := func() *gorm.DB {
		q := db.Model(&models.Tag{})
		if f.Category != "" {
			q = q.Where("category = ?", f.Category)
		}
		if strings.TrimSpace(f.Search) != "" {
			q = q.Where(`LOWER(name) LIKE ? ESCAPE '\'`, likePattern(f.Search))
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, Infrastructure("failed to count tags", err)
	}

	items := []TagWithCount{}
	if err := filtered().
		Select("tags.*, " + tagCountColumn).
		Order("category ASC, name ASC").
		Limit(size).
		Offset((page - 1) * size).
		Scan(&items).Error; err != nil {
		log.Printf("DB Error listing tags: %v", err)
		return nil, Infrastructure("failed to list tags", err)
	}

	return &TagPage{Items: items, Total: total, Page: page, PageSize: size, TotalPages: totalPages(total, size)}, nil
}

func (s *TagService) GetTag(ctx context.Context, id string) (*TagWithCount, error) {
	var tag TagWithCount
	res := s.DB.WithContext(ctx).Model(&models.Tag{}).
		Select("tags.*, "+tagCountColumn).
		Where("tags.id = ?", id).
		Limit(1).
		Scan(&tag)
	if res.Error != nil {
		return nil, Infrastructure("failed to fetch tag", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, NotFound("tag %s not found", id)
	}
	return &tag, nil
}

func validateTagFields(name, category string) []string {
	var issues []string
	if name == "" {
		issues = append(issues, "name is required")
	} else if len(name) > 100 {
		issues = append(issues, "name must be at most 100 characters")
	}
	if category == "" {
		issues = append(issues, "category is required")
	} else if len(category) > 50 {
		issues = append(issues, "category must be at most 50 characters")
	}
	return issues
}

func (s *TagService) CreateTag(ctx context.Context, name, category string) (*models.Tag, error) {
	name, category = strings.TrimSpace(name), strings.TrimSpace(category)
	if issues := validateTagFields(name, category); len(issues) > 0 {
		return nil, Validation("invalid tag", issues...)
	}

	tag := &models.Tag{Name: name, Category: category}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Tag{}).Where("name = ?", name).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return Conflict("tag %q already exists", name)
		}
		return tx.Create(tag).Error
	})
	if err != nil {
		return nil, wrapDBError("failed to create tag", err)
	}
	return tag, nil
}

func (s *TagService) UpdateTag(ctx context.Context, id string, name, category *string) (*models.Tag, error) {
	var tag models.Tag
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tag, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("tag %s not found", id)
			}
			return err
		}
		if name != nil {
			tag.Name = strings.TrimSpace(*name)
		}
		if category != nil {
			tag.Category = strings.TrimSpace(*category)
		}
		if issues := validateTagFields(tag.Name, tag.Category); len(issues) > 0 {
			return Validation("invalid tag", issues...)
		}

		var clash int64
		if err := tx.Model(&models.Tag{}).Where("name = ? AND id <> ?", tag.Name, tag.ID).Count(&clash).Error; err != nil {
			return err
		}
		if clash > 0 {
			return Conflict("tag %q already exists", tag.Name)
		}
		return tx.Save(&tag).Error
	})
	if err != nil {
		return nil, wrapDBError("failed to update tag", err)
	}
	return &tag, nil
}

// DeleteTag removes a tag. A tag still attached to speeches is only deleted
// with force, which detaches it first; speeches themselves are never removed.
func (s *TagService) DeleteTag(ctx context.Context, id string, force bool) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		if err := tx.First(&tag, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("tag %s not found", id)
			}
			return err
		}

		var used int64
		if err := tx.Table(models.SpeechTagsTable).Where("tag_id = ?", id).Count(&used).Error; err != nil {
			return err
		}
		if used > 0 && !force {
			return Conflict("tag %q is used by %d speeches; delete with force=true to detach it", tag.Name, used)
		}
		if used > 0 {
			if err := tx.Exec("DELETE FROM "+models.SpeechTagsTable+" WHERE tag_id = ?", id).Error; err != nil {
				return err
			}
			log.Printf("[Tags] Detached tag %s from %d speeches", tag.Name, used)
		}
		return tx.Delete(&tag).Error
	})
	if err != nil {
		return wrapDBError("failed to delete tag", err)
	}
	return nil
}
