package dto

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wb-go/wbf/ginext"
)

const (
	SubmitAccepted   = "お申し込みを受け付けました"
	NotFound         = "申込情報が見つかりません"
	PaymentFailed    = "決済に失敗しました"
	ExportFailed     = "エクスポートに失敗しました"
	InternalError    = "現在サービスを利用できません。しばらく経ってから再度お試しください。"
	TooManyRequests  = "リクエスト数が多すぎます。しばらく経ってから再度お試しください。"
	MalformedPayload = "リクエストの形式が正しくありません"

	PaymentStatusSuccess = "success"
)

// FlexString accepts JSON strings, numbers and booleans; form values bind as plain strings.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexString(strings.TrimSpace(string(data)))
	return nil
}

func (f FlexString) String() string { return string(f) }

type SubmitApplicationRequest struct {
	ApplicationType   string     `json:"applicationType" form:"applicationType"`
	FullName          string     `json:"fullName" form:"fullName"`
	Furigana          string     `json:"furigana" form:"furigana"`
	CompanyName       string     `json:"companyName" form:"companyName"`
	Department        string     `json:"department" form:"department"`
	ContactPerson     string     `json:"contactPerson" form:"contactPerson"`
	Email             string     `json:"email" form:"email"`
	PhoneNumber       string     `json:"phoneNumber" form:"phoneNumber"`
	EventType         string     `json:"eventType" form:"eventType"`
	ParticipationDate string     `json:"participationDate" form:"participationDate"`
	NumberOfPeople    FlexString `json:"numberOfPeople" form:"numberOfPeople"`
	ExactNumber       FlexString `json:"exactNumber" form:"exactNumber"`
	Notes             string     `json:"notes" form:"notes"`
	HearAbout         string     `json:"hearAbout" form:"hearAbout"`
	Agree             FlexString `json:"agree" form:"agree"`
}

type SubmitApplicationResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ApplicationID string `json:"application_id"`
	RedirectURL   string `json:"redirect_url"`
}

type PaymentCallbackRequest struct {
	OrderID string `json:"order_id" form:"order_id"`
	Status  string `json:"status" form:"status"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Errors []FieldError `json:"errors"`
}

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func ValidationError(c *ginext.Context, errs []FieldError) {
	c.JSON(http.StatusBadRequest, ValidationErrorResponse{Errors: errs})
}

func SubmitSuccess(c *ginext.Context, id, redirectURL string) {
	c.JSON(http.StatusOK, SubmitApplicationResponse{
		Success:       true,
		Message:       SubmitAccepted,
		ApplicationID: id,
		RedirectURL:   redirectURL,
	})
}

func SuccessResponse(c *ginext.Context) {
	c.JSON(http.StatusOK, Result{Success: true})
}

func NotFoundError(c *ginext.Context) {
	c.JSON(http.StatusNotFound, Result{Success: false, Message: NotFound})
}

func PaymentFailedError(c *ginext.Context) {
	c.JSON(http.StatusBadRequest, Result{Success: false, Message: PaymentFailed})
}

func BadPayloadError(c *ginext.Context) {
	c.JSON(http.StatusBadRequest, Result{Success: false, Message: MalformedPayload})
}

func ExportFailedError(c *ginext.Context) {
	c.JSON(http.StatusInternalServerError, Result{Success: false, Message: ExportFailed})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(http.StatusInternalServerError, Result{Success: false, Message: InternalError})
}

func TooManyRequestsError(c *ginext.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Result{Success: false, Message: TooManyRequests})
}
