package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestRenderLoginOTP(t *testing.T) {
	msg := &Message{
		To:       "asha@mnit.ac.in",
		Subject:  "Login OTP Verification",
		Template: TemplateLoginOTP,
		Data:     OTPData{Code: "482913", ValidForMins: 10},
	}
	require.NoError(t, msg.Render("AttendEase"))
	assert.Contains(t, msg.Text, "482913")
	assert.Contains(t, msg.Text, "10 minutes")
	assert.Contains(t, msg.HTML, "482913")
	assert.Contains(t, msg.HTML, "AttendEase")
}

func TestRenderWelcomeEscapesHTML(t *testing.T) {
	msg := &Message{To: "ravi@mnit.ac.in", Template: TemplateWelcome, Data: WelcomeData{Name: "<b>Ravi</b>", StudentID: "21CS002"}}
	require.NoError(t, msg.Render("AttendEase"))
	assert.NotContains(t, msg.HTML, "<b>Ravi</b>")
	assert.Contains(t, msg.Text, "<b>Ravi</b>")
}

func TestRenderErrors(t *testing.T) {
	assert.Error(t, (&Message{To: "not-an-address", Text: "x"}).Render("A"))
	assert.Error(t, (&Message{To: "a@b.co"}).Render("A"))
	assert.Error(t, (&Message{To: "a@b.co", Template: "missing"}).Render("A"))
	assert.NoError(t, (&Message{To: "a@b.co", Text: "plain"}).Render("A"))
}

func TestSMTPSenderSend(t *testing.T) {
	d := &fakeDialer{}
	s := &SMTPSender{dialer: d, from: "noreply@attendease.app", appName: "AttendEase", logger: zap.NewNop()}

	err := s.Send(context.Background(), &Message{
		To:       "asha@mnit.ac.in",
		Subject:  "Password Reset OTP",
		Template: TemplateResetOTP,
		Data:     OTPData{Code: "000123", ValidForMins: 10},
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"AttendEase - Password Reset OTP"}, d.sent[0].GetHeader("Subject"))
	assert.Equal(t, []string{"asha@mnit.ac.in"}, d.sent[0].GetHeader("To"))
}

func TestSMTPSenderPropagatesFailure(t *testing.T) {
	s := &SMTPSender{dialer: &fakeDialer{err: errors.New("535 auth failed")}, from: "x@y.z", logger: zap.NewNop()}
	err := s.Send(context.Background(), &Message{To: "a@b.co", Text: "hi"})
	assert.ErrorContains(t, err, "535")
}

func TestSMTPSenderHonoursCancelledContext(t *testing.T) {
	d := &fakeDialer{}
	s := &SMTPSender{dialer: d, logger: zap.NewNop()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, &Message{To: "a@b.co", Text: "hi"}), context.Canceled)
	assert.Empty(t, d.sent)
}

func TestConsoleSenderRecords(t *testing.T) {
	s := NewConsoleSender("AttendEase", nil)
	require.NoError(t, s.Send(context.Background(), &Message{To: "a@b.co", Subject: "Hi", Text: "hello"}))
	sent := s.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "hello", sent[0].Text)
}
