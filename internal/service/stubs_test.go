package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/noah-isme/attendease-api/internal/models"
	"github.com/noah-isme/attendease-api/internal/repository"
	"github.com/noah-isme/attendease-api/pkg/attendance"
	appErrors "github.com/noah-isme/attendease-api/pkg/errors"
	"github.com/noah-isme/attendease-api/pkg/mailer"
)

type stubUsers struct {
	byEmail   map[string]*models.User
	byID      map[string]*models.User
	list      []models.User
	err       error
	createErr error
	passwords map[string]string
	lastList  models.UserFilter
}

func newStubUsers(users ...*models.User) *stubUsers {
	s := &stubUsers{byEmail: map[string]*models.User{}, byID: map[string]*models.User{}, passwords: map[string]string{}}
	for _, u := range users {
		s.byEmail[u.Email] = u
		s.byID[u.ID] = u
		s.list = append(s.list, *u)
	}
	return s
}

func (s *stubUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.byID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubUsers) ExistsByStudentID(ctx context.Context, studentID string) (bool, error) {
	for _, u := range s.byID {
		if u.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubUsers) Create(ctx context.Context, user *models.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	if user.ID == "" {
		user.ID = "user-" + user.StudentID
	}
	s.byEmail[user.Email] = user
	s.byID[user.ID] = user
	return nil
}

func (s *stubUsers) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	u, ok := s.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	s.passwords[id] = passwordHash
	return nil
}

func (s *stubUsers) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	s.lastList = filter
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

type stubSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newStubSessions() *stubSessions {
	return &stubSessions{sessions: map[string]*models.Session{}}
}

func (s *stubSessions) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *stubSessions) FindByID(ctx context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		cp := *sess
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubSessions) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *stubSessions) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *stubSessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *stubSessions) expire(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id].ExpiresAt = at
}

type stubOTPStore struct {
	entries map[string]*models.OTPEntry
	now     func() time.Time
}

func newStubOTPStore() *stubOTPStore {
	return &stubOTPStore{entries: map[string]*models.OTPEntry{}, now: time.Now}
}

func otpStubKey(purpose models.OTPPurpose, email string) string {
	return string(purpose) + ":" + email
}

func (s *stubOTPStore) Save(ctx context.Context, purpose models.OTPPurpose, email, codeHash string, ttl time.Duration) error {
	s.entries[otpStubKey(purpose, email)] = &models.OTPEntry{CodeHash: codeHash, ExpiresAt: s.now().Add(ttl)}
	return nil
}

func (s *stubOTPStore) Get(ctx context.Context, purpose models.OTPPurpose, email string) (*models.OTPEntry, error) {
	entry, ok := s.entries[otpStubKey(purpose, email)]
	if !ok {
		return nil, repository.ErrOTPNotFound
	}
	cp := *entry
	return &cp, nil
}

func (s *stubOTPStore) IncrementAttempts(ctx context.Context, purpose models.OTPPurpose, email string) (int, error) {
	entry, ok := s.entries[otpStubKey(purpose, email)]
	if !ok {
		return 0, repository.ErrOTPNotFound
	}
	entry.Attempts++
	return entry.Attempts, nil
}

func (s *stubOTPStore) Delete(ctx context.Context, purpose models.OTPPurpose, email string) error {
	delete(s.entries, otpStubKey(purpose, email))
	return nil
}

// recordingMail captures outbound mail for both the inline and queued paths.
type recordingMail struct {
	mu       sync.Mutex
	sent     []*mailer.Message
	queued   []*mailer.Message
	sendErr  error
	queueErr error
}

func (m *recordingMail) SendNow(ctx context.Context, msg *mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMail) Enqueue(ctx context.Context, msg *mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queueErr != nil {
		return m.queueErr
	}
	m.queued = append(m.queued, msg)
	return nil
}

func (m *recordingMail) lastOTP() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Data.(mailer.OTPData).Code
}

type stubOTP struct {
	issued    []models.OTPPurpose
	verified  []string
	issueErr  error
	verifyErr error
}

func (s *stubOTP) Issue(ctx context.Context, purpose models.OTPPurpose, email, requestedFrom string) (*models.OTPSentResponse, error) {
	if s.issueErr != nil {
		return nil, s.issueErr
	}
	s.issued = append(s.issued, purpose)
	return &models.OTPSentResponse{Email: email, ExpiresAt: time.Now().Add(10 * time.Minute)}, nil
}

func (s *stubOTP) Verify(ctx context.Context, purpose models.OTPPurpose, email, code string) error {
	if s.verifyErr != nil {
		return s.verifyErr
	}
	s.verified = append(s.verified, string(purpose)+":"+code)
	return nil
}

type recordKey struct {
	userID, subject, date string
}

// memAttendance keeps records unique per (user, subject, date) like the table.
type memAttendance struct {
	records map[recordKey]models.AttendanceRecord
	err     error
	lists   int
}

func newMemAttendance() *memAttendance {
	return &memAttendance{records: map[recordKey]models.AttendanceRecord{}}
}

func (m *memAttendance) Upsert(ctx context.Context, rec *models.AttendanceRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records[recordKey{rec.UserID, rec.Subject, rec.DateString()}] = *rec
	return nil
}

func (m *memAttendance) Delete(ctx context.Context, userID, subject string, date time.Time) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	key := recordKey{userID, subject, date.Format(models.DateLayout)}
	_, ok := m.records[key]
	delete(m.records, key)
	return ok, nil
}

func (m *memAttendance) List(ctx context.Context, userID string, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	m.lists++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.AttendanceRecord, 0)
	for key, rec := range m.records {
		if key.userID != userID {
			continue
		}
		switch {
		case filter.Subject != "":
			if rec.Subject != filter.Subject {
				continue
			}
		case filter.StartDate != nil && filter.EndDate != nil:
			if rec.Date.Before(*filter.StartDate) || rec.Date.After(*filter.EndDate) {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *memAttendance) CountsByUser(ctx context.Context) (map[string]map[string]attendance.Count, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := map[string]map[string]attendance.Count{}
	for key, rec := range m.records {
		if out[key.userID] == nil {
			out[key.userID] = map[string]attendance.Count{}
		}
		c := out[key.userID][key.subject]
		c.Total++
		if rec.IsPresent {
			c.Present++
		}
		out[key.userID][key.subject] = c
	}
	return out, nil
}

func (m *memAttendance) mark(userID, subject, date string, present bool) {
	d, _ := time.Parse(models.DateLayout, date)
	m.records[recordKey{userID, subject, date}] = models.AttendanceRecord{UserID: userID, Subject: subject, Date: d, IsPresent: present}
}

type stubTimetableRepo struct {
	slots    map[string][]models.TimetableSlot
	lists    int
	replaced []models.TimetableSlot
	err      error
}

func (s *stubTimetableRepo) ListByBatch(ctx context.Context, batch string) ([]models.TimetableSlot, error) {
	s.lists++
	if s.err != nil {
		return nil, s.err
	}
	return s.slots[batch], nil
}

func (s *stubTimetableRepo) ReplaceBatch(ctx context.Context, batch string, slots []models.TimetableSlot) error {
	if s.err != nil {
		return s.err
	}
	if s.slots == nil {
		s.slots = map[string][]models.TimetableSlot{}
	}
	s.slots[batch] = slots
	s.replaced = slots
	return nil
}

// memCache is a JSON round-tripping CacheRepository.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *memCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}
