// Package projection turns an Application into the display values shared by
// the confirmation mail, the staff notice and both export formats.
package projection

import (
	"time"

	"eventform/internal/model"
)

// DateLayout matches how ja-JP locale strings render date and time.
const DateLayout = "2006/1/2 15:04:05"

var Headers = []string{
	"申込ID",
	"申込日時",
	"ステータス",
	"申込種別",
	"氏名/担当者名",
	"フリガナ",
	"会社名",
	"部署名",
	"メールアドレス",
	"電話番号",
	"参加イベント",
	"参加希望日",
	"参加人数",
	"備考",
	"情報取得元",
}

var (
	eventTypeLabels = map[model.EventType]string{
		model.Seminar:    "セミナー",
		model.Workshop:   "ワークショップ",
		model.Conference: "カンファレンス",
	}
	statusLabels = map[model.Status]string{
		model.StatusPending:   "保留中",
		model.StatusCompleted: "完了",
	}
	applicationTypeLabels = map[model.ApplicationType]string{
		model.Individual: "個人",
		model.Corporate:  "法人",
	}
)

type Row struct {
	ID                string
	CreatedAt         string
	Status            string
	ApplicationType   string
	Name              string
	Furigana          string
	CompanyName       string
	Department        string
	Email             string
	Phone             string
	EventType         string
	ParticipationDate string
	People            string
	Notes             string
	Source            string
}

// Project derives the display row of app; timestamps are rendered in loc.
func Project(app model.Application, loc *time.Location) Row {
	row := Row{
		ID:                app.ID,
		CreatedAt:         FormatTime(app.CreatedAt, loc),
		Status:            StatusLabel(app.Status),
		ApplicationType:   ApplicationTypeLabel(app.ApplicationType),
		Name:              app.RecipientName(),
		Email:             app.Email,
		Phone:             app.PhoneNumber,
		EventType:         EventTypeLabel(app.EventType),
		ParticipationDate: app.ParticipationDate,
		People:            app.People(),
		Notes:             app.Notes,
		Source:            app.HearAbout,
	}
	if app.ApplicationType == model.Individual {
		row.Furigana = app.Furigana
	} else {
		row.CompanyName = app.CompanyName
		row.Department = app.Department
	}
	return row
}

// Values lists the row in Headers order.
func (r Row) Values() []string {
	return []string{
		r.ID,
		r.CreatedAt,
		r.Status,
		r.ApplicationType,
		r.Name,
		r.Furigana,
		r.CompanyName,
		r.Department,
		r.Email,
		r.Phone,
		r.EventType,
		r.ParticipationDate,
		r.People,
		r.Notes,
		r.Source,
	}
}

func FormatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateLayout)
}

// EventTypeLabel falls back to the raw value for anything outside the enum.
func EventTypeLabel(e model.EventType) string {
	if label, ok := eventTypeLabels[e]; ok {
		return label
	}
	return string(e)
}

func StatusLabel(s model.Status) string {
	if s == model.StatusCompleted {
		return statusLabels[model.StatusCompleted]
	}
	return statusLabels[model.StatusPending]
}

func ApplicationTypeLabel(t model.ApplicationType) string {
	if t == model.Individual {
		return applicationTypeLabels[model.Individual]
	}
	return applicationTypeLabels[model.Corporate]
}

func ParseEventTypeLabel(label string) (model.EventType, bool) {
	for k, v := range eventTypeLabels {
		if v == label {
			return k, true
		}
	}
	return "", false
}

func ParseStatusLabel(label string) (model.Status, bool) {
	for k, v := range statusLabels {
		if v == label {
			return k, true
		}
	}
	return "", false
}

func ParseApplicationTypeLabel(label string) (model.ApplicationType, bool) {
	for k, v := range applicationTypeLabels {
		if v == label {
			return k, true
		}
	}
	return "", false
}
