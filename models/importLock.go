package models

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/psr_backend/config"
	"gorm.io/gorm"
)

// import locks wait this long before giving up
const importLockTimeoutSeconds = 60

// withImportLock runs fn in a transaction while holding the MySQL advisory lock
// psr_import:<table>. GET_LOCK is connection scoped, so the lock, the transaction and the
// release all run on one pinned connection.
func withImportLock(ctx context.Context, table string, fn func(tx *gorm.DB) error) error {
	lockName := fmt.Sprintf("psr_import:%s", table)
	return config.GetDB().WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var ok int
		if err := conn.Raw("SELECT GET_LOCK(?, ?)", lockName, importLockTimeoutSeconds).Scan(&ok).Error; err != nil {
			return err
		}
		if ok != 1 {
			return fmt.Errorf("could not acquire import lock for %s", table)
		}
		defer func() {
			var released int
			_ = conn.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&released).Error
		}()
		return conn.Transaction(fn)
	})
}
