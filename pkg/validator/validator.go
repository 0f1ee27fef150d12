package validator

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
	"golang.org/x/text/width"

	"eventform/internal/dto"
	"eventform/internal/model"
)

var (
	global     *validator.Validate
	phoneRegex = regexp.MustCompile(`^[0-9()\-\s]+$`)
)

const (
	MsgEmail             = "有効なメールアドレスを入力してください"
	MsgPhone             = "有効な電話番号を入力してください"
	MsgFullName          = "氏名を入力してください"
	MsgFurigana          = "フリガナを入力してください"
	MsgCompanyName       = "会社名を入力してください"
	MsgContactPerson     = "担当者名を入力してください"
	MsgApplicationType   = "申込種別を選択してください"
	MsgEventType         = "参加イベントを選択してください"
	MsgParticipationDate = "参加希望日を選択してください"
	MsgNumberOfPeople    = "参加人数を選択してください"
	MsgExactNumber       = "正確な参加人数を入力してください"
	MsgAgree             = "プライバシーポリシーへの同意が必要です"
)

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", validatePhone)
	_ = v.RegisterValidation("eventtype", validateEventType)
	_ = v.RegisterValidation("positive", validatePositiveCount)
	return v
}

func SetValidator(v *validator.Validate) {
	global = v
}

func Validator() *validator.Validate {
	return global
}

// validatePhone folds full-width digits and parentheses before matching.
func validatePhone(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(width.Fold.String(fl.Field().String()))
}

func validateEventType(fl validator.FieldLevel) bool {
	return model.EventType(fl.Field().String()).Valid()
}

func validatePositiveCount(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Field().String())
	return err == nil && n > 0
}

type rule struct {
	field string
	tag   string
	msg   string
	value func(r *dto.SubmitApplicationRequest) string
}

var (
	contactRules = []rule{
		{field: "email", tag: "email", msg: MsgEmail, value: func(r *dto.SubmitApplicationRequest) string { return r.Email }},
		{field: "phoneNumber", tag: "phone", msg: MsgPhone, value: func(r *dto.SubmitApplicationRequest) string { return r.PhoneNumber }},
	}
	eventRules = []rule{
		{field: "eventType", tag: "required,eventtype", msg: MsgEventType, value: func(r *dto.SubmitApplicationRequest) string { return r.EventType }},
		{field: "participationDate", tag: "required", msg: MsgParticipationDate, value: func(r *dto.SubmitApplicationRequest) string { return r.ParticipationDate }},
		{field: "numberOfPeople", tag: "required", msg: MsgNumberOfPeople, value: func(r *dto.SubmitApplicationRequest) string { return r.NumberOfPeople.String() }},
	}
)

// ValidateApplication runs every rule and collects all failures in rule order.
// A nil slice means the request was accepted.
func ValidateApplication(ctx context.Context, req *dto.SubmitApplicationRequest) []dto.FieldError {
	trim(req)

	var errs []dto.FieldError
	check := func(rs []rule) {
		for _, r := range rs {
			if err := Validator().VarCtx(ctx, r.value(req), r.tag); err != nil {
				errs = append(errs, dto.FieldError{Field: r.field, Message: r.msg})
			}
		}
	}

	check(contactRules)
	errs = append(errs, validateApplicationType(ctx, req)...)
	check(eventRules)

	if req.NumberOfPeople.String() == model.PeopleSentinel {
		if err := Validator().VarCtx(ctx, req.ExactNumber.String(), "positive"); err != nil {
			errs = append(errs, dto.FieldError{Field: "exactNumber", Message: MsgExactNumber})
		}
	}

	if err := Validator().VarCtx(ctx, req.Agree.String(), "eq=true"); err != nil {
		errs = append(errs, dto.FieldError{Field: "agree", Message: MsgAgree})
	}

	return errs
}

func validateApplicationType(ctx context.Context, req *dto.SubmitApplicationRequest) []dto.FieldError {
	required := func(v string) bool {
		return Validator().VarCtx(ctx, v, "required") == nil
	}

	var errs []dto.FieldError
	switch model.ApplicationType(req.ApplicationType) {
	case model.Individual:
		if !required(req.FullName) {
			errs = append(errs, dto.FieldError{Field: "applicationType", Message: MsgFullName})
		}
		if !required(req.Furigana) {
			errs = append(errs, dto.FieldError{Field: "applicationType", Message: MsgFurigana})
		}
	case model.Corporate:
		if !required(req.CompanyName) {
			errs = append(errs, dto.FieldError{Field: "applicationType", Message: MsgCompanyName})
		}
		if !required(req.ContactPerson) {
			errs = append(errs, dto.FieldError{Field: "applicationType", Message: MsgContactPerson})
		}
	default:
		errs = append(errs, dto.FieldError{Field: "applicationType", Message: MsgApplicationType})
	}
	return errs
}

// ToDraft builds the record to persist from an accepted request. Only the
// field group matching the application type survives.
func ToDraft(req *dto.SubmitApplicationRequest) model.Application {
	app := model.Application{
		ApplicationType:   model.ApplicationType(req.ApplicationType),
		Email:             req.Email,
		PhoneNumber:       req.PhoneNumber,
		EventType:         model.EventType(req.EventType),
		ParticipationDate: req.ParticipationDate,
		NumberOfPeople:    req.NumberOfPeople.String(),
		Notes:             req.Notes,
		HearAbout:         req.HearAbout,
	}
	if app.ApplicationType == model.Individual {
		app.FullName = req.FullName
		app.Furigana = req.Furigana
	} else {
		app.CompanyName = req.CompanyName
		app.Department = req.Department
		app.ContactPerson = req.ContactPerson
	}
	if app.NumberOfPeople == model.PeopleSentinel {
		app.ExactNumber = req.ExactNumber.String()
	}
	return app
}

func trim(req *dto.SubmitApplicationRequest) {
	for _, s := range []*string{
		&req.ApplicationType, &req.FullName, &req.Furigana, &req.CompanyName,
		&req.Department, &req.ContactPerson, &req.Email, &req.PhoneNumber,
		&req.EventType, &req.ParticipationDate, &req.Notes, &req.HearAbout,
	} {
		*s = strings.TrimSpace(*s)
	}
	req.NumberOfPeople = dto.FlexString(strings.TrimSpace(req.NumberOfPeople.String()))
	req.ExactNumber = dto.FlexString(strings.TrimSpace(req.ExactNumber.String()))
	req.Agree = dto.FlexString(strings.TrimSpace(req.Agree.String()))
}
