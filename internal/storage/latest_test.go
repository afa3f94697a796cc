package storage

import (
	"batchchat/backend/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func dryRun(t *testing.T, dialector gorm.Dialector) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(dialector, &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestLatest_ReadsCommittedRowUnderLock(t *testing.T) {
	dialects := map[string]gorm.Dialector{
		"mysql": mysql.New(mysql.Config{
			DSN:                       "batchchat:secret@tcp(127.0.0.1:3306)/batchchat?parseTime=true",
			SkipInitializeWithVersion: true,
		}),
		"postgres": postgres.New(postgres.Config{
			DSN: "host=127.0.0.1 port=5432 user=batchchat dbname=batchchat sslmode=disable",
		}),
	}
	for name, dialector := range dialects {
		t.Run(name, func(t *testing.T) {
			db := dryRun(t, dialector)

			var room models.Room
			stmt := latest(db).Where("official_batch_id = ?", 7).First(&room).Statement
			assert.Contains(t, stmt.SQL.String(), "FOR SHARE")

			var member models.RoomMember
			stmt = latest(db).Where("room_id = ? AND user_id = ?", 1, "u").First(&member).Statement
			assert.Contains(t, stmt.SQL.String(), "FOR SHARE")
		})
	}
}
