package dto

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

var (
	validate *validator.Validate
	trans    ut.Translator
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	trans, _ = ut.New(english, english).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		panic(err)
	}
}

// -------- Check auth --------

// CheckAuthRequest is what the homeserver forwards for a login attempt.
type CheckAuthRequest struct {
	UserID     string            `json:"user_id" validate:"required,max=255"`
	LoginType  string            `json:"login_type" validate:"required,max=255"`
	Parameters map[string]string `json:"parameters" validate:"required,dive,max=8192"`
}

func (r *CheckAuthRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return toDomainError(err)
	}
	return nil
}

type CheckAuthResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"user_id"`
}

// -------- Login types --------

type LoginFlow struct {
	Type   string   `json:"type"`
	Params []string `json:"params"`
}

type LoginTypesResponse struct {
	Flows []LoginFlow `json:"flows"`
}

// NewLoginTypesResponse orders flows by type so output is stable.
func NewLoginTypesResponse(types map[string][]string) LoginTypesResponse {
	out := LoginTypesResponse{Flows: make([]LoginFlow, 0, len(types))}
	for t, params := range types {
		out.Flows = append(out.Flows, LoginFlow{Type: t, Params: params})
	}
	sort.Slice(out.Flows, func(i, j int) bool { return out.Flows[i].Type < out.Flows[j].Type })
	return out
}

// toDomainError reports the first failing field.
func toDomainError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return domain.ErrInvalidField("body", err.Error())
	}
	fe := ves[0]
	if fe.Tag() == "required" {
		return domain.ErrMissingField(fe.Field())
	}
	return domain.ErrInvalidField(fe.Field(), fe.Translate(trans))
}
