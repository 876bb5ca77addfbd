package migration

import (
	auditdomain "github.com/portflow/portflow/internal/audit/domain"
	"github.com/portflow/portflow/internal/config"
	debitnotedomain "github.com/portflow/portflow/internal/debitnote/domain"
	docnumberdomain "github.com/portflow/portflow/internal/docnumber/domain"
	taskrecorddomain "github.com/portflow/portflow/internal/taskrecord/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// The versioned SQL migrations target postgres; other dialects
			// (sqlite for local runs, mysql) sync the schema from the models.
			return conn.AutoMigrate(
				&taskrecorddomain.TaskRecord{},
				&debitnotedomain.DebitNote{},
				&debitnotedomain.DebitNoteDetail{},
				&docnumberdomain.DocumentSequence{},
				&auditdomain.AuditLog{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		return RunMigrations(sqlDB)
	}),
)
