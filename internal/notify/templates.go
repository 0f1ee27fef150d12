package notify

import (
	htmltemplate "html/template"
	"text/template"
)

const (
	KindConfirmation = "confirmation"
	KindStaffNotice  = "staff_notice"

	confirmationSubject = "【イベント申込】お申し込み受付のお知らせ"
	staffNoticeSubject  = "【新規申込】イベント申込がありました"

	confirmationFromName = "イベント事務局"
	staffNoticeFromName  = "イベントシステム"

	none = "なし"
)

const applicantBlockText = `申込ID: {{.ID}}
{{- if .StaffView}}
申込日時: {{.CreatedAt}}
{{- end}}
申込種別: {{.ApplicationType}}
{{- if .Individual}}
氏名: {{.Name}}
フリガナ: {{.Furigana}}
{{- else}}
会社名: {{.CompanyName}}
部署名: {{.DepartmentOrNone}}
担当者名: {{.Name}}
{{- end}}
メールアドレス: {{.Email}}
電話番号: {{.Phone}}

■イベント情報
参加イベント: {{.EventType}}
参加希望日: {{.ParticipationDate}}
参加人数: {{.People}}名`

var confirmationText = template.Must(template.New("confirmation").Parse(`{{.Name}} 様

この度はお申し込みいただき、誠にありがとうございます。
以下の内容で申込を受け付けました。

■申込内容
` + applicantBlockText + `

このメールは自動送信されています。
ご不明な点がございましたら、下記までお問い合わせください。

{{.Office.Name}}
TEL: {{.Office.Phone}}
Email: {{.Office.Email}}
`))

var staffNoticeText = template.Must(template.New("staff_notice").Parse(`新規申込がありました。

■申込内容
` + applicantBlockText + `

■備考
{{.NotesOrNone}}

管理画面から詳細を確認してください。
`))

var confirmationHTML = htmltemplate.Must(htmltemplate.New("confirmation_html").Parse(`<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #4a6da7;">お申し込み受付のお知らせ</h2>
  <p>{{.Name}} 様</p>
  <p>この度はお申し込みいただき、誠にありがとうございます。<br>以下の内容で申込を受け付けました。</p>

  <div style="background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
    <h3 style="color: #4a6da7; margin-top: 0;">申込内容</h3>
    <p>申込ID: <strong>{{.ID}}</strong></p>
    <p>申込種別: <strong>{{.ApplicationType}}</strong></p>
    {{- if .Individual}}
    <p>氏名: <strong>{{.Name}}</strong></p>
    <p>フリガナ: <strong>{{.Furigana}}</strong></p>
    {{- else}}
    <p>会社名: <strong>{{.CompanyName}}</strong></p>
    <p>部署名: <strong>{{.DepartmentOrNone}}</strong></p>
    <p>担当者名: <strong>{{.Name}}</strong></p>
    {{- end}}
    <p>メールアドレス: <strong>{{.Email}}</strong></p>
    <p>電話番号: <strong>{{.Phone}}</strong></p>
  </div>

  <div style="background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
    <h3 style="color: #4a6da7; margin-top: 0;">イベント情報</h3>
    <p>参加イベント: <strong>{{.EventType}}</strong></p>
    <p>参加希望日: <strong>{{.ParticipationDate}}</strong></p>
    <p>参加人数: <strong>{{.People}}名</strong></p>
  </div>

  <p>このメールは自動送信されています。<br>ご不明な点がございましたら、下記までお問い合わせください。</p>

  <div style="margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee;">
    <p style="margin: 0;">{{.Office.Name}}</p>
    <p style="margin: 0;">TEL: {{.Office.Phone}}</p>
    <p style="margin: 0;">Email: {{.Office.Email}}</p>
  </div>
</div>
`))
