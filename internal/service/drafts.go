package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/models"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ProductDraft is the admin form for a product. Field names in validation
// errors are the json names.
type ProductDraft struct {
	Name        string  `json:"name" validate:"required,min=3"`
	Slug        string  `json:"slug" validate:"required,min=3,slug"`
	Description *string `json:"description"`
	CoverImage  *string `json:"cover_image"`
	Thumbnail   *string `json:"thumbnail"`
	Category    *string `json:"category"`
	Featured    bool    `json:"featured"`
}

type ModuleDraft struct {
	Title       string  `json:"title" validate:"required"`
	ProductID   string  `json:"product_id" validate:"required"`
	Description *string `json:"description"`
	OrderIndex  *int    `json:"order_index" validate:"omitempty,min=0"`
}

type LessonDraft struct {
	Title       string  `json:"title" validate:"required"`
	VideoURL    string  `json:"video_url" validate:"required"`
	ModuleID    string  `json:"module_id" validate:"required"`
	Description *string `json:"description"`
	Thumbnail   *string `json:"thumbnail"`
	OrderIndex  *int    `json:"order_index" validate:"omitempty,min=0"`
	Duration    *int    `json:"duration" validate:"omitempty,min=0"`
}

type GrantDraft struct {
	UserID    string `json:"user_id" validate:"required"`
	ProductID string `json:"product_id" validate:"required"`
}

// RoleDraft names the role to assign or revoke; an empty role means admin,
// the only role the back office hands out.
type RoleDraft struct {
	Role string `json:"role" validate:"oneof=admin user"`
}

func (d *RoleDraft) normalize() {
	d.Role = strings.ToLower(strings.TrimSpace(d.Role))
	if d.Role == "" {
		d.Role = string(models.RoleAdmin)
	}
}

func (d *ProductDraft) normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Slug = strings.TrimSpace(d.Slug)
	d.Description = trimOptional(d.Description)
	d.CoverImage = trimOptional(d.CoverImage)
	d.Thumbnail = trimOptional(d.Thumbnail)
	d.Category = trimOptional(d.Category)
}

func (d *ModuleDraft) normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.ProductID = strings.TrimSpace(d.ProductID)
	d.Description = trimOptional(d.Description)
}

func (d *LessonDraft) normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.VideoURL = strings.TrimSpace(d.VideoURL)
	d.ModuleID = strings.TrimSpace(d.ModuleID)
	d.Description = trimOptional(d.Description)
	d.Thumbnail = trimOptional(d.Thumbnail)
}

func (d *GrantDraft) normalize() {
	d.UserID = strings.TrimSpace(d.UserID)
	d.ProductID = strings.TrimSpace(d.ProductID)
}

// trimOptional maps blank optional text to nil so empty form inputs are
// stored as NULL.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

type draftValidator struct {
	v *validator.Validate
}

func newDraftValidator() *draftValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic("service: register slug validation: " + err.Error())
	}
	return &draftValidator{v: v}
}

var drafts = newDraftValidator()

// check validates draft and reports the first offending field.
func (d *draftValidator) check(op string, draft any) error {
	err := d.v.Struct(draft)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation(op, "", err.Error())
	}
	fe := verrs[0]
	return apperr.Validation(op, fe.Field(), describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "slug":
		return fmt.Sprintf("%s may only contain lowercase letters, digits and single dashes", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
