package store

import (
	"github.com/google/uuid"
	"github.com/yanun0323/errors"

	"main/internal/authority"
	"main/pkg/conn"
	"main/pkg/exception"
)

// AuthorityRecord is the persisted form of one authority log record.
type AuthorityRecord struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	RunID        string `gorm:"size:36;index:idx_run_seq"`
	Seq          int    `gorm:"index:idx_run_seq"`
	Ts           int64
	Action       string `gorm:"size:64"`
	ActorID      string `gorm:"size:64"`
	PayloadHash  string `gorm:"size:64"`
	SignatureMAC string `gorm:"size:64"`
	Fingerprint  string `gorm:"size:80"`
	PrevHash     string `gorm:"size:64"`
	RecordHash   string `gorm:"size:64"`
}

// TableName sets the storage table.
func (AuthorityRecord) TableName() string {
	return "authority_records"
}

const insertBatchSize = 200

// Store persists authority log records per run.
type Store struct {
	client *conn.Client
	runID  string
}

// New migrates the schema and starts a new run.
func New(client *conn.Client) (*Store, error) {
	if client == nil || client.DB() == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "store requires a database client")
	}
	if err := client.DB().AutoMigrate(&AuthorityRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate authority records")
	}
	return &Store{
		client: client,
		runID:  uuid.NewString(),
	}, nil
}

// RunID returns the identifier assigned to this run.
func (s *Store) RunID() string {
	return s.runID
}

// SaveRecords appends authority records for the current run.
func (s *Store) SaveRecords(records []authority.Record, startSeq int) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]AuthorityRecord, 0, len(records))
	for i, r := range records {
		rows = append(rows, rowFromRecord(s.runID, startSeq+i, r))
	}
	if err := s.client.DB().CreateInBatches(rows, insertBatchSize).Error; err != nil {
		return errors.Wrap(err, "insert authority records")
	}
	return nil
}

// LoadRun reads a run's records in sequence order.
func (s *Store) LoadRun(runID string) ([]authority.Record, error) {
	var rows []AuthorityRecord
	if err := s.client.DB().
		Where("run_id = ?", runID).
		Order("seq asc").
		Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load authority records")
	}
	records := make([]authority.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

func rowFromRecord(runID string, seq int, r authority.Record) AuthorityRecord {
	return AuthorityRecord{
		RunID:        runID,
		Seq:          seq,
		Ts:           r.Ts,
		Action:       r.Action,
		ActorID:      r.ActorID,
		PayloadHash:  r.PayloadHash,
		SignatureMAC: r.SignatureMAC,
		Fingerprint:  r.Fingerprint,
		PrevHash:     r.PrevHash,
		RecordHash:   r.RecordHash,
	}
}

func (row AuthorityRecord) toRecord() authority.Record {
	return authority.Record{
		Ts:           row.Ts,
		Action:       row.Action,
		ActorID:      row.ActorID,
		PayloadHash:  row.PayloadHash,
		SignatureMAC: row.SignatureMAC,
		Fingerprint:  row.Fingerprint,
		PrevHash:     row.PrevHash,
		RecordHash:   row.RecordHash,
	}
}

// VerifyRun loads a run and verifies its hash chain.
func (s *Store) VerifyRun(runID string) error {
	records, err := s.LoadRun(runID)
	if err != nil {
		return err
	}
	return authority.VerifyRecords(records)
}
