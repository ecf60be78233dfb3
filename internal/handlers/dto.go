package handlers

import (
	"time"

	"github.com/vblendo1/koisando-green-alien/internal/feed"
	"github.com/vblendo1/koisando-green-alien/internal/models"
	"github.com/vblendo1/koisando-green-alien/internal/service"
)

type productResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	CoverImage  *string   `json:"cover_image"`
	Thumbnail   *string   `json:"thumbnail"`
	CardImage   string    `json:"card_image"`
	Category    *string   `json:"category"`
	Featured    bool      `json:"featured"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProduct(p models.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		CoverImage:  p.CoverImage,
		Thumbnail:   p.Thumbnail,
		CardImage:   p.CardImage(),
		Category:    p.Category,
		Featured:    p.Featured,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type moduleResponse struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	OrderIndex  int       `json:"order_index"`
	CreatedAt   time.Time `json:"created_at"`
}

func toModule(m models.Module) moduleResponse {
	return moduleResponse{
		ID:          m.ID,
		ProductID:   m.ProductID,
		Title:       m.Title,
		Description: m.Description,
		OrderIndex:  m.OrderIndex,
		CreatedAt:   m.CreatedAt,
	}
}

func toModules(ms []models.Module) []moduleResponse {
	out := make([]moduleResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, toModule(m))
	}
	return out
}

type lessonResponse struct {
	ID          string    `json:"id"`
	ModuleID    string    `json:"module_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	VideoURL    string    `json:"video_url"`
	EmbedURL    string    `json:"embed_url"`
	Thumbnail   *string   `json:"thumbnail"`
	OrderIndex  int       `json:"order_index"`
	Duration    *int      `json:"duration"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toLesson(l models.Lesson) lessonResponse {
	return lessonResponse{
		ID:          l.ID,
		ModuleID:    l.ModuleID,
		Title:       l.Title,
		Description: l.Description,
		VideoURL:    l.VideoURL,
		EmbedURL:    service.EmbedURL(l.VideoURL),
		Thumbnail:   l.Thumbnail,
		OrderIndex:  l.OrderIndex,
		Duration:    l.Duration,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func toLessons(ls []models.Lesson) []lessonResponse {
	out := make([]lessonResponse, 0, len(ls))
	for _, l := range ls {
		out = append(out, toLesson(l))
	}
	return out
}

type completionResponse struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

func toCompletion(c models.Completion) completionResponse {
	return completionResponse{Completed: c.Completed, Total: c.Total, Percent: c.Percent()}
}

type progressResponse struct {
	ID          string     `json:"id"`
	LessonID    string     `json:"lesson_id"`
	ProductID   string     `json:"product_id,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toProgress(p models.Progress) progressResponse {
	return progressResponse{
		ID:          p.ID,
		LessonID:    p.LessonID,
		Completed:   p.Completed,
		CompletedAt: p.CompletedAt,
		CreatedAt:   p.CreatedAt,
	}
}

type cardResponse struct {
	productResponse
	Owned    bool                `json:"owned"`
	IsNew    bool                `json:"is_new"`
	Progress *completionResponse `json:"progress,omitempty"`
}

func toCard(c feed.Card) cardResponse {
	card := cardResponse{productResponse: toProduct(c.Product), Owned: c.Owned, IsNew: c.New}
	if c.Progress != nil {
		p := toCompletion(*c.Progress)
		card.Progress = &p
	}
	return card
}

func toCards(cs []feed.Card) []cardResponse {
	out := make([]cardResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, toCard(c))
	}
	return out
}

type categoryResponse struct {
	Name   string         `json:"name"`
	Owned  []cardResponse `json:"owned"`
	Locked []cardResponse `json:"locked"`
}

type feedResponse struct {
	Featured         *cardResponse      `json:"featured"`
	Owned            []cardResponse     `json:"owned"`
	Locked           []cardResponse     `json:"locked"`
	ContinueWatching []cardResponse     `json:"continue_watching"`
	NewItems         []cardResponse     `json:"new_items"`
	Categories       []categoryResponse `json:"categories"`
}

func toFeed(v feed.View) feedResponse {
	resp := feedResponse{
		Owned:            toCards(v.Owned),
		Locked:           toCards(v.Locked),
		ContinueWatching: toCards(v.ContinueWatching),
		NewItems:         toCards(v.NewItems),
		Categories:       make([]categoryResponse, 0, len(v.Categories)),
	}
	if v.Featured != nil {
		card := toCard(*v.Featured)
		resp.Featured = &card
	}
	for _, cat := range v.Categories {
		resp.Categories = append(resp.Categories, categoryResponse{
			Name:   cat.Name,
			Owned:  toCards(cat.Owned),
			Locked: toCards(cat.Locked),
		})
	}
	return resp
}

type entitlementResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProductID   string    `json:"product_id"`
	PurchasedAt time.Time `json:"purchased_at"`
	ProductName string    `json:"product_name,omitempty"`
	UserName    *string   `json:"user_name,omitempty"`
}

type userResponse struct {
	ID             string        `json:"id"`
	Name           *string       `json:"name"`
	ProfilePicture *string       `json:"profile_picture"`
	Roles          []models.Role `json:"roles"`
	CreatedAt      time.Time     `json:"created_at"`
}
