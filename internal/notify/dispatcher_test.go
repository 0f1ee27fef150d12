package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventform/internal/mailer"
	"eventform/internal/model"
)

type recordingQueue struct {
	mu   sync.Mutex
	msgs []mailer.Message
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, msg mailer.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func testConfig() Config {
	return Config{
		From:         "noreply@example.com",
		StaffAddress: "event@example.com",
		Office:       Office{Name: "イベント事務局", Phone: "03-1234-5678", Email: "event@example.com"},
		Location:     time.FixedZone("JST", 9*60*60),
	}
}

func individualApp() model.Application {
	return model.Application{
		ID:                "app-1",
		ApplicationType:   model.Individual,
		FullName:          "Yamada",
		Furigana:          "ヤマダ",
		Email:             "y@example.com",
		PhoneNumber:       "03-1234-5678",
		EventType:         model.Seminar,
		ParticipationDate: "2024-05-01",
		NumberOfPeople:    "2",
		Status:            model.StatusPending,
		CreatedAt:         time.Date(2024, 4, 1, 1, 0, 0, 0, time.UTC),
	}
}

func corporateApp() model.Application {
	return model.Application{
		ID:                "app-2",
		ApplicationType:   model.Corporate,
		CompanyName:       "ACME",
		ContactPerson:     "Suzuki",
		Email:             "s@acme.example",
		PhoneNumber:       "06-0000-0000",
		EventType:         model.Conference,
		ParticipationDate: "2024-06-01",
		NumberOfPeople:    model.PeopleSentinel,
		ExactNumber:       "12",
		Notes:             "wheelchair access",
		Status:            model.StatusPending,
		CreatedAt:         time.Date(2024, 4, 1, 1, 0, 0, 0, time.UTC),
	}
}

func newTestDispatcher(q Queue) *Dispatcher {
	log := zerolog.Nop()
	return NewDispatcher(q, testConfig(), &log, nil)
}

func TestConfirmationIndividual(t *testing.T) {
	msg, err := newTestDispatcher(&recordingQueue{}).Confirmation(individualApp())
	require.NoError(t, err)

	assert.Equal(t, KindConfirmation, msg.Kind)
	assert.Equal(t, "y@example.com", msg.To)
	assert.Equal(t, "noreply@example.com", msg.From)
	assert.Equal(t, confirmationSubject, msg.Subject)
	assert.Equal(t, "app-1", msg.RefID)

	assert.Contains(t, msg.Text, "Yamada 様")
	assert.Contains(t, msg.Text, "申込種別: 個人")
	assert.Contains(t, msg.Text, "フリガナ: ヤマダ")
	assert.Contains(t, msg.Text, "参加イベント: セミナー")
	assert.Contains(t, msg.Text, "参加人数: 2名")
	assert.NotContains(t, msg.Text, "会社名")
	assert.NotContains(t, msg.Text, "申込日時")

	assert.Contains(t, msg.HTML, "<strong>ヤマダ</strong>")
	assert.Contains(t, msg.HTML, "<strong>2名</strong>")
}

func TestConfirmationCorporate(t *testing.T) {
	msg, err := newTestDispatcher(&recordingQueue{}).Confirmation(corporateApp())
	require.NoError(t, err)

	assert.Contains(t, msg.Text, "Suzuki 様")
	assert.Contains(t, msg.Text, "会社名: ACME")
	assert.Contains(t, msg.Text, "部署名: なし")
	assert.Contains(t, msg.Text, "担当者名: Suzuki")
	assert.Contains(t, msg.Text, "参加イベント: カンファレンス")
	assert.Contains(t, msg.Text, "参加人数: 12名")
	assert.NotContains(t, msg.Text, "フリガナ")
}

func TestConfirmationEscapesHTML(t *testing.T) {
	app := individualApp()
	app.FullName = "<script>x</script>"
	msg, err := newTestDispatcher(&recordingQueue{}).Confirmation(app)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.Text, "<script>x</script> 様")
}

func TestConfirmationWithoutEmail(t *testing.T) {
	app := individualApp()
	app.Email = ""
	_, err := newTestDispatcher(&recordingQueue{}).Confirmation(app)
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestStaffNotice(t *testing.T) {
	msg, err := newTestDispatcher(&recordingQueue{}).StaffNotice(corporateApp())
	require.NoError(t, err)

	assert.Equal(t, KindStaffNotice, msg.Kind)
	assert.Equal(t, "event@example.com", msg.To)
	assert.Empty(t, msg.HTML)
	assert.Contains(t, msg.Text, "申込日時: 2024/4/1 10:00:00")
	assert.Contains(t, msg.Text, "■備考\nwheelchair access")

	msg, err = newTestDispatcher(&recordingQueue{}).StaffNotice(individualApp())
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "■備考\nなし")
}

func TestDispatchEnqueuesBoth(t *testing.T) {
	q := &recordingQueue{}
	app := individualApp()
	newTestDispatcher(q).Dispatch(context.Background(), app)

	require.Len(t, q.msgs, 2)
	assert.Equal(t, KindConfirmation, q.msgs[0].Kind)
	assert.Equal(t, app.Email, q.msgs[0].To)
	assert.Equal(t, KindStaffNotice, q.msgs[1].Kind)
	for _, msg := range q.msgs {
		assert.Equal(t, app.ID, msg.RefID)
	}
}

func TestDispatchSkipsConfirmationWithoutEmail(t *testing.T) {
	q := &recordingQueue{}
	app := individualApp()
	app.Email = ""
	newTestDispatcher(q).Dispatch(context.Background(), app)

	require.Len(t, q.msgs, 1)
	assert.Equal(t, KindStaffNotice, q.msgs[0].Kind)
}

func TestDispatchSwallowsQueueErrors(t *testing.T) {
	q := &recordingQueue{err: errors.New("broker down")}
	assert.NotPanics(t, func() {
		newTestDispatcher(q).Dispatch(context.Background(), individualApp())
	})
	assert.Empty(t, q.msgs)
}
