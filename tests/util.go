package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/notification"
	"github.com/trezcool/schooldesk/core/user"
	"github.com/trezcool/schooldesk/storage/database"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	id, name, email, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr, err := repo.CreateUser(context.Background(), user.User{
		ID:          id,
		Email:       email,
		DisplayName: name,
		Role:        role,
		IsActive:    isActive,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// FreezeTime makes core.NowFunc return `now` until the test ends.
func FreezeTime(t *testing.T, now time.Time) {
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now.UTC() }
	t.Cleanup(func() { core.NowFunc = orig })
}

// OpenDB opens the test database and migrates it. The test is skipped when TEST_DATABASE_HOST is not set.
func OpenDB(t *testing.T) *sqlx.DB {
	if os.Getenv("TEST_DATABASE_HOST") == "" {
		t.Skip("TEST_DATABASE_HOST not set")
	}
	conf := core.NewTestConfig()
	conf.Database.Host = os.Getenv("TEST_DATABASE_HOST")
	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("CreateIfNotExist() failed: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ResetDB(t, db)
	return db
}

// ResetDB empties every application table.
func ResetDB(t *testing.T, db *sqlx.DB) {
	q := "TRUNCATE " + strings.Join(database.Tables, ", ") + " CASCADE"
	if _, err := db.Exec(q); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}

// Logger records log lines.
type Logger struct {
	mu    sync.Mutex
	Lines []string
}

var _ core.Logger = (*Logger)(nil) // interface compliance check

func (l *Logger) log(level, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := level + ": " + msg
	for _, a := range args {
		if err, ok := a.(error); ok {
			line += ": " + err.Error()
		}
	}
	l.Lines = append(l.Lines, line)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args...) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("FATAL", msg, args...) }

// Contains reports whether a line containing `s` was logged.
func (l *Logger) Contains(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.Lines {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

// Notifier records notifications instead of sending them.
type Notifier struct {
	mu   sync.Mutex
	Sent []notification.Notification
	Err  error
}

func (n *Notifier) Notify(_ context.Context, ns ...notification.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, ns...)
	return n.Err
}

// Of returns the recorded notifications of type `typ` sent to `userID`.
func (n *Notifier) Of(userID, typ string) []notification.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var res []notification.Notification
	for _, s := range n.Sent {
		if s.UserID == userID && s.Type == typ {
			res = append(res, s)
		}
	}
	return res
}

func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = nil
}

func FloatPtr(f float64) *float64 { return &f }

func TimePtr(t time.Time) *time.Time { return &t }

// Uploads builds `n` small text uploads.
func Uploads(n int) []core.Upload {
	ups := make([]core.Upload, n)
	for i := range ups {
		content := fmt.Sprintf("report part %d", i+1)
		ups[i] = core.Upload{
			Name:        fmt.Sprintf("part-%d.txt", i+1),
			Size:        int64(len(content)),
			ContentType: "text/plain",
			Content:     strings.NewReader(content),
		}
	}
	return ups
}

// Mailer records messages instead of sending them.
type Mailer struct {
	mu   sync.Mutex
	Sent []*core.EmailMessage
}

func (m *Mailer) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, messages...)
}

func (m *Mailer) Messages() []*core.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*core.EmailMessage(nil), m.Sent...)
}
