package models

type ClassificationPlan struct {
	Model
	Name        string `gorm:"size:255;not null;uniqueIndex:idx_plans_name,where:deleted_at IS NULL" json:"name"`
	Description string `json:"description"`
	Active      bool   `gorm:"not null;default:true" json:"active"`
}

func (ClassificationPlan) TableName() string {
	return "classification_plans"
}
