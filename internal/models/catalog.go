package models

import "time"

type Product struct {
	ID          string
	Name        string
	Slug        string
	Description *string
	CoverImage  *string
	Thumbnail   *string
	Category    *string
	Featured    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CardImage is the image used on product cards: the thumbnail, or the cover
// when no thumbnail was uploaded.
func (p Product) CardImage() string {
	if p.Thumbnail != nil && *p.Thumbnail != "" {
		return *p.Thumbnail
	}
	if p.CoverImage != nil {
		return *p.CoverImage
	}
	return ""
}

type ProductFilter struct {
	Category     string
	FeaturedOnly bool
	Search       string
}

type Module struct {
	ID          string
	ProductID   string
	Title       string
	Description *string
	OrderIndex  int
	CreatedAt   time.Time
}

type Lesson struct {
	ID          string
	ModuleID    string
	Title       string
	Description *string
	VideoURL    string
	Thumbnail   *string
	OrderIndex  int
	Duration    *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LessonLocation is a lesson together with the ids of the module and product
// that own it.
type LessonLocation struct {
	Lesson      Lesson
	ModuleTitle string
	ProductID   string
	ProductSlug string
}

type ModuleOutline struct {
	Module  Module
	Lessons []Lesson
}
