package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"crewdispatch/internal/database"
	"crewdispatch/internal/models"
	"crewdispatch/internal/repositories"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var testDBCounter atomic.Int64

// newTestDB opens an isolated in-memory database with the full schema
// applied. A single connection avoids table-lock flakes when tests hammer
// the same row from many goroutines.
func newTestDB(t *testing.T) (database.DB, repositories.Repository) {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", testDBCounter.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := database.DB{SQL: gdb}
	require.NoError(t, db.MigrateModels())
	require.NoError(t, db.CreateIndexes())

	return db, repositories.New(db)
}

func createUser(
	t *testing.T,
	repos repositories.Repository,
	chatID int64,
	role models.UserRole,
) *models.User {
	t.Helper()

	name := fmt.Sprintf("user_%d", chatID)
	user := &models.User{
		ChatID:   chatID,
		Username: &name,
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, repos.User.Create(context.Background(), nil, user))
	return user
}

type sentMessage struct {
	ChatID int64
	Text   string
}

// fakeNotifier records deliveries instead of publishing them.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

func (f *fakeNotifier) Send(ctx context.Context, chatID int64, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false
	}
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return true
}

func (f *fakeNotifier) sentTo(chatID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, msg := range f.sent {
		if msg.ChatID == chatID {
			count++
		}
	}
	return count
}
