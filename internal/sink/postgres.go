package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/ifclca/ifcqto/internal/record"
	"github.com/ohler55/ojg/oj"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ElementRow is the PostgreSQL row of one element record.
type ElementRow struct {
	ID              uint           `gorm:"primaryKey"`
	GUID            string         `gorm:"column:guid;index:idx_building_elements_project_guid,priority:2;not null"`
	ProjectID       string         `gorm:"column:project_id;index:idx_building_elements_project_guid,priority:1;not null"`
	InstanceName    string         `gorm:"column:instance_name;not null"`
	IfcClass        string         `gorm:"column:ifc_class;not null"`
	TotalVolume     *float64       `gorm:"column:total_volume"`
	VolumeSource    string         `gorm:"column:volume_source;not null"`
	AllocationBasis string         `gorm:"column:allocation_basis;not null"`
	IsMultilayer    bool           `gorm:"column:is_multilayer;not null"`
	BuildingStorey  *string        `gorm:"column:building_storey"`
	IsLoadbearing   *bool          `gorm:"column:is_loadbearing"`
	IsExternal      *bool          `gorm:"column:is_external"`
	IfcFileOrigin   string         `gorm:"column:ifc_file_origin"`
	UserID          string         `gorm:"column:user_id"`
	SessionID       string         `gorm:"column:session_id"`
	MaterialsInfo   datatypes.JSON `gorm:"column:materials_info;type:jsonb"`
	CreatedAt       time.Time
}

func (ElementRow) TableName() string { return "building_elements" }

// Postgres inserts rows through gorm in a single CreateInBatches call per batch.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Warn),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.AutoMigrate(&ElementRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate building_elements: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Row converts a record into its table row.
func Row(r record.ElementRecord) ElementRow {
	doc := r.Document()
	return ElementRow{
		GUID:            r.GUID,
		ProjectID:       r.Correlation.ProjectID,
		InstanceName:    r.Name,
		IfcClass:        r.Class,
		TotalVolume:     r.TotalVolume,
		VolumeSource:    string(r.VolumeSource),
		AllocationBasis: string(r.Basis),
		IsMultilayer:    r.IsMultilayer,
		BuildingStorey:  r.BuildingStorey,
		IsLoadbearing:   r.IsLoadbearing,
		IsExternal:      r.IsExternal,
		IfcFileOrigin:   r.Correlation.Origin,
		UserID:          r.Correlation.UserID,
		SessionID:       r.Correlation.SessionID,
		MaterialsInfo:   datatypes.JSON(oj.JSON(doc["materials_info"], &ojgSorted)),
	}
}

func (p *Postgres) InsertMany(ctx context.Context, records []record.ElementRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]ElementRow, len(records))
	for i, r := range records {
		rows[i] = Row(r)
	}
	if err := p.db.WithContext(ctx).CreateInBatches(rows, len(rows)).Error; err != nil {
		return fmt.Errorf("insert %d rows: %w", len(rows), err)
	}
	return nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Sink = (*Postgres)(nil)
