package repository

import (
	"go-pos-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CategoryRepository interface {
	Create(category *model.Category) error
	FindAll() ([]model.Category, error)
	FindByID(id uuid.UUID) (*model.Category, error)
	FindByName(name string) (*model.Category, error)
	Update(category *model.Category) error
	Delete(id uuid.UUID) error
	CountProducts(id uuid.UUID) (int64, error)
}

type categoryRepo struct {
	db *gorm.DB
}

func NewCategoryRepo(db *gorm.DB) CategoryRepository {
	return &categoryRepo{db}
}

func (r *categoryRepo) Create(category *model.Category) error {
	return r.db.Create(category).Error
}

func (r *categoryRepo) FindAll() ([]model.Category, error) {
	var categories []model.Category
	err := r.db.Order("name ASC").Find(&categories).Error
	return categories, err
}

func (r *categoryRepo) FindByID(id uuid.UUID) (*model.Category, error) {
	var category model.Category
	err := r.db.First(&category, "id = ?", id).Error
	return &category, err
}

func (r *categoryRepo) FindByName(name string) (*model.Category, error) {
	var category model.Category
	err := r.db.First(&category, "name = ?", name).Error
	return &category, err
}

func (r *categoryRepo) Update(category *model.Category) error {
	return r.db.Save(category).Error
}

func (r *categoryRepo) Delete(id uuid.UUID) error {
	return r.db.Delete(&model.Category{}, "id = ?", id).Error
}

func (r *categoryRepo) CountProducts(id uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&model.Product{}).Where("category_id = ?", id).Count(&count).Error
	return count, err
}
