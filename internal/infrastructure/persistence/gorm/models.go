// Package gorm provides GORM model definitions for the application
package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/card"
	"github.com/alchemorsel/recipeflow/internal/domain/knowledge"
	"github.com/alchemorsel/recipeflow/internal/domain/sacred"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UploadModel represents the GORM model for uploads
type UploadModel struct {
	ID            uuid.UUID  `gorm:"type:char(36);primaryKey"`
	SourceKind    string     `gorm:"type:varchar(20);not null"`
	RawContentRef string     `gorm:"type:text"`
	Status        string     `gorm:"type:varchar(20);not null;index"`
	ErrorMessage  string     `gorm:"type:text"`
	RecipeID      *uuid.UUID `gorm:"type:char(36);index"`
	CreatedAt     time.Time  `gorm:"index"`
	CompletedAt   *time.Time
}

// RecipeModel represents the GORM model for recipes
type RecipeModel struct {
	ID          uuid.UUID `gorm:"type:char(36);primaryKey"`
	UploadID    uuid.UUID `gorm:"type:char(36);index"`
	Title       string    `gorm:"type:varchar(255);not null"`
	Slug        string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_recipes_slug"`
	Hook        string    `gorm:"type:text"`
	Description string    `gorm:"type:text"`
	Cuisine     string    `gorm:"type:varchar(100);index"`
	Vessel      string    `gorm:"type:varchar(100)"`

	// Timing (stored in minutes)
	TotalTimeMinutes int `gorm:"column:total_time_minutes;default:0"`
	PrepTimeMinutes  int `gorm:"column:prep_time_minutes;default:0"`
	CookTimeMinutes  int `gorm:"column:cook_time_minutes;default:0"`

	Serves         int `gorm:"default:2"`
	Difficulty     int `gorm:"default:1"`
	SpiceLevel     int `gorm:"default:0"`
	AdventureLevel int `gorm:"default:1"`

	DietaryTags StringSlice `gorm:"type:json"`
	SeasonTags  StringSlice `gorm:"type:json"`
	Tips        StringSlice `gorm:"type:json"`

	SourceURL      string    `gorm:"type:text"`
	PipelineStatus string    `gorm:"type:varchar(20);not null;default:'extracted'"`
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time

	// Relationships
	Ingredients []IngredientModel `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
}

// IngredientModel represents the GORM model for recipe ingredients
type IngredientModel struct {
	ID                 uuid.UUID `gorm:"type:char(36);primaryKey"`
	RecipeID           uuid.UUID `gorm:"type:char(36);not null;index"`
	Name               string    `gorm:"type:varchar(255);not null"`
	Quantity           string    `gorm:"type:varchar(100)"`
	Unit               string    `gorm:"type:varchar(50)"`
	IsPantryStaple     bool      `gorm:"default:false"`
	IsSacred           bool      `gorm:"default:false"`
	SupermarketSection string    `gorm:"type:varchar(100)"`
	EstimatedCost      *float64
	SortOrder          int `gorm:"default:0"`
}

// SacredAnalysisModel represents the GORM model for sacred analyses
type SacredAnalysisModel struct {
	RecipeID             uuid.UUID                           `gorm:"type:char(36);primaryKey"`
	Cuisine              string                              `gorm:"type:varchar(100);not null;index"`
	HeroIngredient       string                              `gorm:"type:varchar(255);not null"`
	SacredIngredients    JSONList[sacred.SacredIngredient]   `gorm:"type:json"`
	SacredTechnique      string                              `gorm:"type:text"`
	SacredFlavourProfile string                              `gorm:"type:text"`
	FlexibleIngredients  JSONList[sacred.FlexibleIngredient] `gorm:"type:json"`
	SideTasksNeeded      StringSlice                         `gorm:"type:json"`
	OnePotFeasible       bool                                `gorm:"default:true"`
	QualityScore         float64                             `gorm:"default:0"`
	Confidence           float64                             `gorm:"default:0"`
	RiskLevel            string                              `gorm:"type:varchar(20)"`
	AdaptationsMade      StringSlice                         `gorm:"type:json"`
	CreatedAt            time.Time                           `gorm:"index"`

	// Relationships
	Recipe RecipeModel `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
}

// KnowledgeBaseModel represents the GORM model for learned cuisine knowledge
type KnowledgeBaseModel struct {
	Cuisine                 string                                    `gorm:"type:varchar(100);primaryKey"`
	CommonSacredIngredients JSONList[knowledge.SacredIngredientStat]  `gorm:"type:json"`
	CommonSacredTechniques  StringSlice                               `gorm:"type:json"`
	CommonFlavourProfiles   StringSlice                               `gorm:"type:json"`
	TypicalHeroIngredients  StringSlice                               `gorm:"type:json"`
	CommonlyRemoved         JSONList[knowledge.RemovedIngredientStat] `gorm:"type:json"`
	CommonSubstitutions     JSONList[knowledge.Substitution]          `gorm:"type:json"`
	CommonSideTasks         JSONList[knowledge.SideTaskStat]          `gorm:"type:json"`
	RecipeCount             int                                       `gorm:"default:0;index"`
	AvgQualityScore         float64                                   `gorm:"default:0"`
	LastLearnedAt           time.Time
}

// WorkflowCardModel represents the GORM model for workflow cards
type WorkflowCardModel struct {
	ID              uuid.UUID   `gorm:"type:char(36);primaryKey"`
	RecipeID        uuid.UUID   `gorm:"type:char(36);not null;uniqueIndex:idx_workflow_cards_recipe_number"`
	CardNumber      int         `gorm:"not null;uniqueIndex:idx_workflow_cards_recipe_number"`
	Title           string      `gorm:"type:varchar(255);not null"`
	CardType        string      `gorm:"type:varchar(50)"`
	HeatLevel       string      `gorm:"type:varchar(20);not null"`
	Instructions    StringSlice `gorm:"type:json"`
	SuccessMarker   string      `gorm:"type:text;not null"`
	TimerSeconds    *int
	ParallelTask    *string                      `gorm:"type:text"`
	ProTip          *string                      `gorm:"type:text"`
	TechniqueIcon   string                       `gorm:"type:varchar(100)"`
	IngredientsUsed JSONList[card.IngredientUse] `gorm:"type:json"`
	CreatedAt       time.Time

	// Relationships
	Recipe RecipeModel `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
}

// StringSlice custom type for handling string slices in JSON
type StringSlice []string

// Scan implements the sql.Scanner interface
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}
}

// Value implements the driver.Valuer interface
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	return string(data), err
}

// JSONList stores a slice of value objects as a JSON array column
type JSONList[T any] []T

// Scan implements the sql.Scanner interface
func (l *JSONList[T]) Scan(value interface{}) error {
	if value == nil {
		*l = JSONList[T]{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into JSONList", value)
	}
}

// Value implements the driver.Valuer interface
func (l JSONList[T]) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	return string(data), err
}

// BeforeCreate hook for UploadModel
func (u *UploadModel) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// BeforeCreate hook for IngredientModel
func (i *IngredientModel) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// BeforeCreate hook for WorkflowCardModel
func (c *WorkflowCardModel) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// TableName methods for custom table names
func (UploadModel) TableName() string {
	return "uploads"
}

func (RecipeModel) TableName() string {
	return "recipes"
}

func (IngredientModel) TableName() string {
	return "ingredients"
}

func (SacredAnalysisModel) TableName() string {
	return "sacred_analyses"
}

func (KnowledgeBaseModel) TableName() string {
	return "knowledge_bases"
}

func (WorkflowCardModel) TableName() string {
	return "workflow_cards"
}

// AllModels lists every model in dependency order, for AutoMigrate
func AllModels() []interface{} {
	return []interface{}{
		&UploadModel{},
		&RecipeModel{},
		&IngredientModel{},
		&SacredAnalysisModel{},
		&KnowledgeBaseModel{},
		&WorkflowCardModel{},
	}
}
